package handle

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"waste-bot/api/internal/classify"
	"waste-bot/api/internal/guide"
)

type LabelInfo struct {
	Label       classify.Label `json:"label"`
	DisplayName string         `json:"display_name"`
	Instruction string         `json:"instruction"`
	VideoPath   string         `json:"video_path"`
}

func (h *Handle) Labels(c *gin.Context) {
	labels := append(append([]classify.Label{}, classify.Known...), classify.General)
	out := make([]LabelInfo, 0, len(labels))
	for _, l := range labels {
		out = append(out, LabelInfo{
			Label:       l,
			DisplayName: h.Table.DisplayName(l),
			Instruction: h.Table.Instruction(l),
			VideoPath:   h.Table.VideoPath(l),
		})
	}
	c.JSON(http.StatusOK, gin.H{"threshold": h.Threshold, "labels": out})
}

// viewForLabel: подсказка по имени метки. Незнакомая метка получает подсказку по умолчанию.
func (h *Handle) viewForLabel(raw string) guide.View {
	l, ok := classify.ParseLabel(raw)
	if !ok {
		l = classify.Label(strings.TrimSpace(raw))
	}
	return h.Table.ViewFor(classify.Result{
		Label:      l,
		RawLabel:   raw,
		Confidence: 1,
		Accepted:   l != classify.General,
	})
}

func (h *Handle) GuideJSON(c *gin.Context) {
	c.JSON(http.StatusOK, h.viewForLabel(c.Param("label")))
}

func (h *Handle) GuidePage(c *gin.Context) {
	v := h.viewForLabel(c.Param("label"))
	if v.VideoPath != "" && !strings.HasPrefix(v.VideoPath, "/") && !strings.Contains(v.VideoPath, "://") {
		v.VideoPath = "/" + v.VideoPath
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := guide.RenderHTML(c.Writer, v); err != nil {
		_ = c.Error(err)
	}
}
