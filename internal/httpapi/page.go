package httpapi

import (
	"bytes"
	"html/template"
	"net/http"

	"tutord/pkg/types"
)

// pageTmpl is the single form page. html/template escapes the response text.
var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<title>Offline AI Tutor</title>
<h1>Offline AI Tutor</h1>
<form method=post>
  <textarea name=prompt rows=4 cols=60 placeholder="Ask me anything…"></textarea><br>
  <button type=submit>Submit</button>
</form>
{{- with .Response}}{{if .Text}}
  <h2>Response:</h2>
  <pre{{if .Failed}} class="error"{{end}}>{{.Text}}</pre>
{{- end}}{{end}}
`))

// pageData is the view model; a nil Response or one with empty Text renders
// no response section.
type pageData struct {
	Response *responseView
}

type responseView struct {
	Text   string
	Failed bool
}

func viewOf(res types.InferenceResult) *responseView {
	return &responseView{Text: res.Text, Failed: res.Failed}
}

// renderPage executes the template into a buffer first so a template error
// never leaves a half-written 200.
func renderPage(w http.ResponseWriter, status int, data pageData) error {
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, data); err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}
