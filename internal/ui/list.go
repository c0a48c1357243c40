package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/jukebox/internal/models"
)

var _ list.Item = requestItem{}

// requestItem wraps [models.RequestSong] to implement [list.Item].
type requestItem struct {
	request models.RequestSong
	playing bool
}

func (i requestItem) FilterValue() string { return i.request.SongTitle + " " + i.request.ArtistName }

func (i requestItem) Title() string {
	if i.playing {
		return styles.playing.Render("▶ " + i.request.SongTitle)
	}
	return i.request.SongTitle
}

func (i requestItem) Description() string {
	return fmt.Sprintf("%s • %s • requested by %s at %s",
		i.request.ArtistName, i.request.PlayTime, i.request.CustomerID, i.request.CreatedAt.Local().Format(time.Kitchen))
}

// requestItems converts rows for display, marking the row with playingID.
func requestItems(rows []models.RequestSong, playingID int64) []list.Item {
	items := make([]list.Item, len(rows))
	for i, r := range rows {
		items[i] = requestItem{request: r, playing: playingID != 0 && r.ID == playingID}
	}
	return items
}
