package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/jukebox/internal/client"
	"github.com/desertthunder/jukebox/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSubscribed MsgKind = iota
	MsgStoreChanged
	MsgActionDone
	MsgAdvanced
)

type subscribed struct {
	unsubscribe client.Unsubscribe
	err         error
}

type actionDone struct {
	label string
	err   error
}

type advanced struct {
	request *models.RequestSong
	err     error
}

// subscribedMsg is the constructor for [MsgSubscribed]
func subscribedMsg(unsubscribe client.Unsubscribe, err error) Msg {
	return Msg{kind: MsgSubscribed, data: subscribed{unsubscribe, err}}
}

// storeChangedMsg is the constructor for [MsgStoreChanged]
func storeChangedMsg() Msg {
	return Msg{kind: MsgStoreChanged}
}

// actionDoneMsg is the constructor for [MsgActionDone]
func actionDoneMsg(label string, err error) Msg {
	return Msg{kind: MsgActionDone, data: actionDone{label, err}}
}

// advancedMsg is the constructor for [MsgAdvanced]
func advancedMsg(r *models.RequestSong, err error) Msg {
	return Msg{kind: MsgAdvanced, data: advanced{r, err}}
}
