package httpapi

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/antoniostano/voicebridge/internal/exchange"
)

//go:embed static/*
var embeddedStatic embed.FS

//go:embed templates/index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

func newStaticHandler() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		return http.NotFoundHandler()
	}
	return http.FileServer(http.FS(sub))
}

type indexView struct {
	UserText string
	BotText  string
	AudioURL string
}

func indexData(ex exchange.Exchange) indexView {
	return indexView{
		UserText: ex.Transcript,
		BotText:  ex.Reply,
		AudioURL: ex.AudioURL,
	}
}
