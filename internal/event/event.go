// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

// Package event defines the two closed event vocabularies exchanged between
// the host and its addons, and the in-process bus that carries them.
//
// Outbound events travel from the host (or an addon) toward the presentation
// layer; inbound events arrive from the presentation layer and are fanned out
// to addon callbacks. Both vocabularies are fixed: event traffic outside them
// is dropped with a warning, never delivered.
package event

// Outbound is a command sent toward the presentation layer.
type Outbound string

// The outbound vocabulary.
const (
	OutNext           Outbound = "next"
	OutPrevious       Outbound = "previous"
	OutPause          Outbound = "pause"
	OutPlay           Outbound = "play"
	OutPlayPause      Outbound = "playPause"
	OutNewest         Outbound = "newest"
	OutDelete         Outbound = "delete"
	OutStar           Outbound = "star"
	OutMute           Outbound = "mute"
	OutReboot         Outbound = "reboot"
	OutShutdown       Outbound = "shutdown"
	OutRecord         Outbound = "record"
	OutAskConfirm     Outbound = "askConfirm"
	OutAskCancel      Outbound = "askCancel"
	OutMessageBox     Outbound = "messageBox"
	OutImagesUpdated  Outbound = "imagesUpdated"
	OutReloadRenderer Outbound = "reloadRenderer"
)

// Inbound is a notification arriving from the presentation layer.
type Inbound string

// The inbound vocabulary.
const (
	InRendererReady       Inbound = "renderer-ready"
	InImagesLoaded        Inbound = "images-loaded"
	InTeleFrameReady      Inbound = "teleFrame-ready"
	InStarImage           Inbound = "starImage"
	InUnstarImage         Inbound = "unstarImage"
	InDeleteImage         Inbound = "deleteImage"
	InImageDeleted        Inbound = "imageDeleted"
	InRemoveImageUnseen   Inbound = "removeImageUnseen"
	InNewImage            Inbound = "newImage"
	InPaused              Inbound = "paused"
	InMuted               Inbound = "muted"
	InRecordStarted       Inbound = "recordStarted"
	InRecordStopped       Inbound = "recordStopped"
	InRecordError         Inbound = "recordError"
	InChangingActiveImage Inbound = "changingActiveImage"
	InChangedActiveImage  Inbound = "changedActiveImage"
)

// outbounds holds the outbound vocabulary in declaration order.
var outbounds = []Outbound{
	OutNext, OutPrevious, OutPause, OutPlay, OutPlayPause, OutNewest,
	OutDelete, OutStar, OutMute, OutReboot, OutShutdown, OutRecord,
	OutAskConfirm, OutAskCancel, OutMessageBox, OutImagesUpdated,
	OutReloadRenderer,
}

// inbounds holds the inbound vocabulary in declaration order.
var inbounds = []Inbound{
	InRendererReady, InImagesLoaded, InTeleFrameReady, InStarImage,
	InUnstarImage, InDeleteImage, InImageDeleted, InRemoveImageUnseen,
	InNewImage, InPaused, InMuted, InRecordStarted, InRecordStopped,
	InRecordError, InChangingActiveImage, InChangedActiveImage,
}

var (
	outboundSet = make(map[Outbound]struct{}, len(outbounds))
	inboundSet  = make(map[Inbound]struct{}, len(inbounds))
)

func init() {
	for _, o := range outbounds {
		outboundSet[o] = struct{}{}
	}
	for _, i := range inbounds {
		inboundSet[i] = struct{}{}
	}
}

// Valid reports whether o is part of the outbound vocabulary.
func (o Outbound) Valid() bool {
	_, ok := outboundSet[o]
	return ok
}

// Valid reports whether i is part of the inbound vocabulary.
func (i Inbound) Valid() bool {
	_, ok := inboundSet[i]
	return ok
}

// Outbounds returns the outbound vocabulary in declaration order.
// The returned slice is a copy.
func Outbounds() []Outbound {
	out := make([]Outbound, len(outbounds))
	copy(out, outbounds)
	return out
}

// Inbounds returns the inbound vocabulary in declaration order.
// The returned slice is a copy.
func Inbounds() []Inbound {
	in := make([]Inbound, len(inbounds))
	copy(in, inbounds)
	return in
}
