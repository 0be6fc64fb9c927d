package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Vasu1712/scenyx-radio/internal/models"
	"github.com/Vasu1712/scenyx-radio/internal/radio"
)

// MessageType tags every control-plane message.
type MessageType string

// Client → server.
const (
	TypeGetAllRadios MessageType = "get_all_radios"
	TypeCreateRadio  MessageType = "create_radio"
	TypeRenameRadio  MessageType = "rename_radio"
	TypeDeleteRadio  MessageType = "delete_radio"
	TypeJoinRadio    MessageType = "join_radio"
	TypeAddSong      MessageType = "add_song"
	TypePlayPause    MessageType = "play_pause"
	TypeSkip         MessageType = "skip"
)

// Server → client.
const (
	TypeAllRadios          MessageType = "all_radios"
	TypeRadioCreated       MessageType = "radio_created"
	TypeRadioRenamed       MessageType = "radio_renamed"
	TypeRadioRenamedRejoin MessageType = "radio_renamed_rejoin"
	TypeRadioDeleted       MessageType = "radio_deleted"
	TypeRadioState         MessageType = "radio_state"
	TypeQueueUpdated       MessageType = "queue_updated"
	TypeNowPlaying         MessageType = "now_playing"
	TypePlaybackState      MessageType = "playback_state"
	TypeSongAdded          MessageType = "song_added"
	TypeError              MessageType = "error"
)

// ErrBadMessage indicates a frame that is not a well-formed known command.
var ErrBadMessage = errors.New("malformed message")

// Envelope is the wire shape of every message.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Command is a decoded, validated client request.
type Command interface {
	Type() MessageType
}

type GetAllRadios struct{}

type CreateRadio struct {
	Name string `json:"name"`
}

type RenameRadio struct {
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}

type DeleteRadio struct {
	Name string `json:"name"`
}

type JoinRadio struct {
	RadioName string `json:"radioName"`
}

type AddSong struct {
	URL       string `json:"url"`
	RadioName string `json:"radioName"`
}

type PlayPause struct {
	RadioName string `json:"radioName"`
}

type Skip struct {
	RadioName string `json:"radioName"`
}

func (GetAllRadios) Type() MessageType { return TypeGetAllRadios }
func (CreateRadio) Type() MessageType  { return TypeCreateRadio }
func (RenameRadio) Type() MessageType  { return TypeRenameRadio }
func (DeleteRadio) Type() MessageType  { return TypeDeleteRadio }
func (JoinRadio) Type() MessageType    { return TypeJoinRadio }
func (AddSong) Type() MessageType      { return TypeAddSong }
func (PlayPause) Type() MessageType    { return TypePlayPause }
func (Skip) Type() MessageType         { return TypeSkip }

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", radio.ErrValidation, field)
	}
	return nil
}

func (c CreateRadio) validate() error { return required("name", c.Name) }
func (c DeleteRadio) validate() error { return required("name", c.Name) }
func (c JoinRadio) validate() error   { return required("radioName", c.RadioName) }
func (c PlayPause) validate() error   { return required("radioName", c.RadioName) }
func (c Skip) validate() error        { return required("radioName", c.RadioName) }

func (c RenameRadio) validate() error {
	if err := required("oldName", c.OldName); err != nil {
		return err
	}
	return required("newName", c.NewName)
}

func (c AddSong) validate() error {
	if err := required("radioName", c.RadioName); err != nil {
		return err
	}
	if err := required("url", c.URL); err != nil {
		return err
	}
	u, err := url.Parse(strings.TrimSpace(c.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q is not a valid link", radio.ErrValidation, c.URL)
	}
	return nil
}

// DecodeCommand parses and validates one client frame.
func DecodeCommand(raw []byte) (Command, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}

	var cmd Command
	switch env.Type {
	case TypeGetAllRadios:
		return GetAllRadios{}, nil
	case TypeCreateRadio:
		cmd = decodeInto[CreateRadio](env.Data)
	case TypeRenameRadio:
		cmd = decodeInto[RenameRadio](env.Data)
	case TypeDeleteRadio:
		cmd = decodeInto[DeleteRadio](env.Data)
	case TypeJoinRadio:
		cmd = decodeInto[JoinRadio](env.Data)
	case TypeAddSong:
		cmd = decodeInto[AddSong](env.Data)
	case TypePlayPause:
		cmd = decodeInto[PlayPause](env.Data)
	case TypeSkip:
		cmd = decodeInto[Skip](env.Data)
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrBadMessage)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrBadMessage, env.Type)
	}

	if d, ok := cmd.(decodeError); ok {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadMessage, env.Type, d.err)
	}
	if v, ok := cmd.(interface{ validate() error }); ok {
		if err := v.validate(); err != nil {
			return nil, err
		}
	}
	return cmd, nil
}

type decodeError struct{ err error }

func (decodeError) Type() MessageType { return "" }

func decodeInto[T Command](data json.RawMessage) Command {
	var v T
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return decodeError{errors.New("missing data")}
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return decodeError{err}
	}
	return v
}

// Payloads of server messages.
type (
	AllRadiosData struct {
		Radios []models.RadioSummary `json:"radios"`
	}
	RadioNameData struct {
		Name string `json:"name"`
	}
	RadioRenamedData struct {
		OldName string `json:"oldName"`
		NewName string `json:"newName"`
	}
	QueueData struct {
		Queue []models.QueueEntry `json:"queue"`
	}
	NowPlayingData struct {
		Track *models.Track `json:"track"`
	}
	PlaybackData struct {
		IsPlaying bool `json:"isPlaying"`
	}
	SongAddedData struct {
		Track models.Track `json:"track"`
	}
	ErrorData struct {
		Message string `json:"message"`
	}
)

// Encode builds a server frame.
func Encode(t MessageType, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Data: raw})
}
