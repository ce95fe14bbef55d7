package guide

import (
	"html/template"
	"io"

	"waste-bot/api/internal/classify"
)

const Title = "Waste disposal guide"

// View: всё, что нужно слою отображения, без привязки к конкретному UI.
type View struct {
	Title       string         `json:"title"`
	Label       classify.Label `json:"label"`
	DisplayName string         `json:"display_name"`
	Instruction string         `json:"instruction"`
	VideoPath   string         `json:"video_path"`
	Confidence  float64        `json:"confidence"`
	Accepted    bool           `json:"accepted"`
}

func (t Table) ViewFor(res classify.Result) View {
	return View{
		Title:       Title,
		Label:       res.Label,
		DisplayName: t.DisplayName(res.Label),
		Instruction: t.Instruction(res.Label),
		VideoPath:   t.VideoPath(res.Label),
		Confidence:  res.Confidence,
		Accepted:    res.Accepted,
	}
}

// ViewFor строит View по встроенной таблице.
func ViewFor(res classify.Result) View { return defaultTable.ViewFor(res) }

var pageTmpl = template.Must(template.New("guide").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; padding: 30px; text-align: center; }
    h1 { font-size: 28px; color: #2c3e50; }
    p { font-size: 18px; color: #555; }
    video { margin-top: 20px; width: 640px; height: 360px; border: 2px solid #444; }
  </style>
</head>
<body>
  <h1>Category: {{.DisplayName}}</h1>
  <p>{{.Instruction}}</p>
  <video controls autoplay>
    <source src="{{.Video}}" type="video/mp4">
    Your browser does not support the video tag.
  </video>
</body>
</html>
`))

// RenderHTML пишет страницу с инструкцией и автозапуском ролика.
// Путь к ролику берётся из таблицы подсказок, поэтому помечается как доверенный URL.
func RenderHTML(w io.Writer, v View) error {
	return pageTmpl.Execute(w, struct {
		View
		Video template.URL
	}{v, template.URL(v.VideoPath)})
}
