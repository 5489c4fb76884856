package main

import (
	"bytes"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bdougie/pitchside/internal/models"
)

func TestConsoleSinkPrintsCaptionsInOrder(t *testing.T) {
	var out bytes.Buffer
	sink := newConsoleSink(&out)

	sink.Status(models.StageFetching, "Downloading video...")
	for i, idx := range []int{0, 30} {
		sink.Captioned(models.WorkItem{
			Frame:    models.Frame{Index: idx, Offset: time.Duration(idx) * time.Second, Image: image.NewRGBA(image.Rect(0, 0, 1, 1))},
			FrameNum: i + 1,
			Total:    2,
		}, models.Caption{FrameIndex: idx, Text: "caption " + string(rune('A'+i))})
	}
	sink.finish()

	text := out.String()
	assert.Contains(t, text, "Downloading video...")
	assert.Contains(t, text, "[frame 0, 0s]")
	assert.Contains(t, text, "[frame 30, 30s]")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("caption A")), bytes.Index(out.Bytes(), []byte("caption B")))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["narrate"])
}
