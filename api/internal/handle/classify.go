package handle

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"waste-bot/api/internal/classify"
	"waste-bot/api/internal/guide"
	"waste-bot/api/internal/util"
)

const maxImageBytes = 10 << 20

type ClassifyRequest struct {
	Engine   string `json:"engine"`
	ImageB64 string `json:"image_b64"`
	MIME     string `json:"mime"`
}

type ClassifyResponse struct {
	Engine      string                `json:"engine"`
	Model       string                `json:"model"`
	Predictions []classify.Prediction `json:"predictions"`
	Result      classify.Result       `json:"result"`
	View        guide.View            `json:"view"`
}

// Classify: POST /v1/classify, multipart поле image либо JSON {image_b64}.
func (h *Handle) Classify(c *gin.Context) {
	img, mime, engineName, err := readImage(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if q := c.Query("engine"); q != "" {
		engineName = q
	}

	engine := h.Default
	if engineName != "" {
		engine, err = h.Engines.Get(engineName)
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	if engine == nil {
		respondError(c, http.StatusServiceUnavailable, "no engine configured")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout(c, 60*time.Second))
	defer cancel()

	start := time.Now()
	preds, err := engine.Predict(ctx, img, mime)
	if err != nil {
		h.Logger.Warn("predict failed", zap.String("engine", engine.Name()), zap.Error(err))
		respondError(c, http.StatusBadGateway, "classification error: "+err.Error())
		return
	}
	res := classify.DispatchWithThreshold(preds, h.Threshold)
	if h.Metrics != nil {
		h.Metrics.ObserveResult(engine.Name(), res, time.Since(start))
	}

	c.JSON(http.StatusOK, ClassifyResponse{
		Engine:      engine.Name(),
		Model:       engine.GetModel(),
		Predictions: preds,
		Result:      res,
		View:        h.Table.ViewFor(res),
	})
}

func readImage(c *gin.Context) ([]byte, string, string, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("image")
		if err != nil {
			return nil, "", "", errors.New("multipart field image is required")
		}
		if fh.Size > maxImageBytes {
			return nil, "", "", errors.New("image is too large")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, "", "", err
		}
		defer f.Close()
		b, err := io.ReadAll(f)
		if err != nil || len(b) == 0 {
			return nil, "", "", errors.New("empty image")
		}
		return b, util.PickMIME(fh.Header.Get("Content-Type"), "", b), c.PostForm("engine"), nil
	}

	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, "", "", errors.New("bad json: " + err.Error())
	}
	b, hint, err := util.DecodeBase64MaybeDataURL(req.ImageB64)
	if err != nil || len(b) == 0 {
		return nil, "", "", errors.New("bad image_b64")
	}
	if len(b) > maxImageBytes {
		return nil, "", "", errors.New("image is too large")
	}
	return b, util.PickMIME(req.MIME, hint, b), req.Engine, nil
}
