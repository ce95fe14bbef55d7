package present

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"waste-bot/api/internal/classify"
	"waste-bot/api/internal/guide"
)

func TestConsole(t *testing.T) {
	var out bytes.Buffer
	c := &Console{Logger: zap.NewNop(), Out: &out}
	v := guide.ViewFor(classify.Result{Label: classify.Can, Accepted: true, Confidence: 0.93})

	require.NoError(t, c.ShowResult(context.Background(), v))
	require.NoError(t, c.OpenGuide(context.Background(), v))

	assert.Contains(t, out.String(), "Classification result: can")
	assert.Contains(t, out.String(), "Video: videos/can.mp4")
}

func TestPage(t *testing.T) {
	dir := t.TempDir()
	var opened string
	p := &Page{Dir: dir, Browse: true, Opener: func(path string) error {
		opened = path
		return nil
	}}
	v := guide.ViewFor(classify.Result{Label: classify.Styrofoam, Accepted: true})

	require.NoError(t, p.OpenGuide(context.Background(), v))

	want := filepath.Join(dir, "guide-styrofoam.html")
	assert.Equal(t, want, opened)
	b, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Contains(t, string(b), "videos/styrofoam.mp4")
}

func TestMulti(t *testing.T) {
	var a, b bytes.Buffer
	m := Multi{&Console{Out: &a}, &Console{Out: &b}}
	v := guide.ViewFor(classify.Result{Label: classify.General})

	require.NoError(t, m.ShowResult(context.Background(), v))

	assert.Equal(t, a.String(), b.String())
	assert.Contains(t, a.String(), guide.GeneralInstruction)
}

func TestPageVideoDir(t *testing.T) {
	dir := t.TempDir()
	p := &Page{Dir: dir, VideoDir: "/srv/videos"}
	v := guide.ViewFor(classify.Result{Label: classify.Can, Accepted: true})

	require.NoError(t, p.OpenGuide(context.Background(), v))

	b, err := os.ReadFile(filepath.Join(dir, "guide-can.html"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "file:///srv/videos/can.mp4")
}

func TestPageUnsafeLabel(t *testing.T) {
	dir := t.TempDir()
	var opened string
	p := &Page{Dir: dir, Browse: true, Opener: func(path string) error {
		opened = path
		return nil
	}}
	v := guide.ViewFor(classify.Result{Label: classify.Label("../../etc/battery"), Accepted: true})

	require.NoError(t, p.OpenGuide(context.Background(), v))

	assert.Equal(t, filepath.Join(dir, "guide-______etc_battery.html"), opened)
	assert.FileExists(t, opened)
}

func TestPageName(t *testing.T) {
	assert.Equal(t, "glass", pageName("glass"))
	assert.Equal(t, "유리병", pageName("유리병"))
	assert.Equal(t, "a_b", pageName("a/b"))
	assert.Equal(t, "unknown", pageName(".."))
	assert.Equal(t, "unknown", pageName(""))
}
