package screenshot

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"collabsauce/api/internal/store"
)

func TestRequestFor(t *testing.T) {
	tests := []struct {
		name     string
		task     store.Task
		metadata store.TaskMetadata
		want     Request
	}{
		{
			name:     "defaults when the widget reported nothing",
			metadata: store.TaskMetadata{},
			want:     Request{HTML: "<p>x</p>", Width: 1280, Height: 800, Scale: 1},
		},
		{
			name:     "uses the reported window and pixel ratio",
			task:     store.Task{TargetDOMPath: "body > div"},
			metadata: store.TaskMetadata{BrowserWindowWidth: 390, BrowserWindowHeight: 844, DevicePixelRatio: 3},
			want:     Request{HTML: "<p>x</p>", Width: 390, Height: 844, Scale: 3, CaptureElement: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, RequestFor(tt.task, tt.metadata, "<p>x</p>"))
		})
	}
}

func TestWithBase(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		origin string
		want   string
	}{
		{"no origin", "<html><head></head></html>", "", "<html><head></head></html>"},
		{"inserted after head", "<html><HEAD><title>t</title></HEAD></html>", "https://site.test", `<html><HEAD><base href="https://site.test/"><title>t</title></HEAD></html>`},
		{"prepended without head", "<p>hi</p>", "https://site.test/", `<base href="https://site.test/"><p>hi</p>`},
		{"existing base kept", `<head><base href="/x/"></head>`, "https://site.test", `<head><base href="/x/"></head>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, withBase(tt.doc, tt.origin))
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	require.Equal(t, "a%20b%3Cp%3E%C3%A9-_.~", percentEncodeForDataURL("a b<p>é-_.~"))
}

func TestDecodePNGDataURL(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nrest")
	good := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	got, err := DecodePNGDataURL(good)
	require.NoError(t, err)
	require.Equal(t, png, got)

	for _, bad := range []string{
		"",
		"data:image/jpeg;base64,AAAA",
		"data:image/png;base64,%%%",
		"data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("GIF89a")),
	} {
		_, err := DecodePNGDataURL(bad)
		require.ErrorIs(t, err, ErrInvalidDataURL, bad)
	}
}
