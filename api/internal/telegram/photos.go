package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"waste-bot/api/internal/classify"
	"waste-bot/api/internal/guide"
	"waste-bot/api/internal/session"
	"waste-bot/api/internal/util"
)

func (r *Router) acceptPhoto(ctx context.Context, msg tgbotapi.Message) {
	cid := msg.Chat.ID

	fileID, mime := "", ""
	if len(msg.Photo) > 0 {
		fileID = msg.Photo[len(msg.Photo)-1].FileID
	} else {
		fileID, mime = msg.Document.FileID, msg.Document.MimeType
	}
	data, err := r.download(ctx, fileID)
	if err != nil {
		r.SendError(cid, err)
		return
	}

	key := fmt.Sprintf("chat:%d", cid)
	if msg.MediaGroupID != "" {
		key = "grp:" + msg.MediaGroupID
	}
	r.addToBatch(context.WithoutCancel(ctx), key, cid, msg.MediaGroupID, photo{data: data, mime: util.PickMIME(mime, "", data)})
}

func (r *Router) addToBatch(ctx context.Context, key string, chatID int64, groupID string, p photo) {
	for {
		bi, _ := r.batches.LoadOrStore(key, &photoBatch{ChatID: chatID, Key: key, MediaGroupID: groupID})
		b := bi.(*photoBatch)

		b.mu.Lock()
		// пачку могли уже забрать в обработку между LoadOrStore и Lock
		if cur, ok := r.batches.Load(key); !ok || cur != bi {
			b.mu.Unlock()
			continue
		}
		if len(b.images) < maxBatchImages {
			b.images = append(b.images, p)
		}
		if b.timer != nil {
			b.timer.Stop()
		}
		b.timer = time.AfterFunc(debounce, func() { r.processBatch(ctx, key) })
		b.mu.Unlock()
		return
	}
}

func (r *Router) processBatch(ctx context.Context, key string) {
	bi, ok := r.batches.LoadAndDelete(key)
	if !ok {
		return
	}
	b := bi.(*photoBatch)

	b.mu.Lock()
	images := append([]photo(nil), b.images...)
	chatID := b.ChatID
	b.mu.Unlock()

	if len(images) == 0 {
		return
	}
	r.last.Store(chatID, images)
	r.classifyBatch(ctx, chatID, images)
}

// classifyBatch ведёт один сеанс на пачку. Кадры идут по порядку, подсказку даёт первый принятый,
// остальные игнорируются. Если ни один не прошёл порог, отвечаем общим результатом.
func (r *Router) classifyBatch(ctx context.Context, chatID int64, images []photo) {
	eng := r.EngManager.Get(chatID)
	table := r.table()
	threshold := r.Threshold
	if threshold <= 0 {
		threshold = classify.DefaultThreshold
	}
	s := session.New()
	log := r.log().With(zap.Int64("chat_id", chatID), zap.String("session_id", s.ID.String()), zap.String("engine", eng.Name()))

	for i, img := range images {
		start := time.Now()
		preds, err := eng.Predict(ctx, img.data, img.mime)
		if err != nil {
			log.Warn("predict failed", zap.Int("frame", i), zap.Error(err))
			r.SendError(chatID, err)
			return
		}
		res := classify.DispatchWithThreshold(preds, threshold)
		if r.Metrics != nil {
			r.Metrics.ObserveResult(eng.Name(), res, time.Since(start))
		}
		if s.Observe(res) {
			log.Info("guidance triggered", zap.String("label", string(res.Label)), zap.Float64("confidence", res.Confidence), zap.Int("frame", i))
			v := table.ViewFor(res)
			r.sendGuide(chatID, v)
			r.record(ctx, chatID, s, v, eng.Name())
			return
		}
	}

	res := classify.Result{Label: classify.General}
	if s.Last != nil {
		res = *s.Last
	}
	log.Info("no confident frame", zap.String("raw_label", res.RawLabel), zap.Float64("confidence", res.Confidence))
	r.sendGuide(chatID, table.ViewFor(res))
}

func (r *Router) sendGuide(chatID int64, v guide.View) {
	text := guideText(v)
	if path := r.localVideo(v.VideoPath); path != "" {
		vc := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
		vc.Caption = text
		_, err := r.Bot.Send(vc)
		if err == nil {
			return
		}
		r.log().Warn("send video failed, falling back to text", zap.String("path", path), zap.Error(err))
	}
	r.send(chatID, text+"\n🎬 "+v.VideoPath)
}

func (r *Router) localVideo(videoPath string) string {
	if r.VideoDir == "" || videoPath == "" {
		return ""
	}
	p := filepath.Join(r.VideoDir, filepath.Base(videoPath))
	if st, err := os.Stat(p); err != nil || st.IsDir() {
		return ""
	}
	return p
}

func (r *Router) record(ctx context.Context, chatID int64, s *session.Session, v guide.View, engine string) {
	if r.Metrics != nil {
		r.Metrics.ObserveGuide(v.Label)
	}
	ev := session.NewEvent(s, v, "telegram", engine)
	ev.ChatID = chatID
	if r.History != nil {
		if _, err := r.History.Insert(ctx, ev); err != nil {
			r.log().Warn("save event failed", zap.Error(err))
		}
	}
	if r.Publisher != nil {
		if err := r.Publisher.Publish(ctx, ev); err != nil {
			r.log().Warn("publish event failed", zap.Error(err))
		}
	}
}

func guideText(v guide.View) string {
	head := fmt.Sprintf("♻️ %s (%.0f%%)", v.DisplayName, v.Confidence*100)
	if !v.Accepted {
		head = "🗑 " + v.DisplayName
	}
	return util.Truncate(head+"\n"+v.Instruction, 1000)
}

func (r *Router) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download status %d: %s", resp.StatusCode, string(b))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}
	return data, nil
}
