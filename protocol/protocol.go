package protocol

import (
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
)

func GetSockAddress() string {
	return "/var/run/snapcam.sock"
}

func GetLockFile() string {
	return "/var/run/snapcam.pid"
}

type Action string

const (
	ActionSnapshot Action = "SNAP"
)

type Req struct {
	ID     string            `json:"id"`
	Action Action            `json:"action"`
	Params map[string]string `json:"params"`
}

type SnapReq struct {
	Client   string
	Equalize bool
	Raw      bool
}

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

// Frame carries image data in a response. Data is base64 on the wire.
type Frame struct {
	Format string    `json:"format"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Stride int       `json:"stride"`
	Time   time.Time `json:"time"`
	Data   []byte    `json:"data"`
}

type Res struct {
	ID     string            `json:"id"`
	Status Status            `json:"status"`
	Error  string            `json:"error,omitempty"`
	Extras map[string]string `json:"extras,omitempty"`
	Frame  *Frame            `json:"frame,omitempty"`
}

func ReadReq(r io.Reader) (*Req, error) {
	var req Req
	err := json.NewDecoder(r).Decode(&req)
	return &req, err
}

func ReadRes(r io.Reader) (*Res, error) {
	var res Res
	err := json.NewDecoder(r).Decode(&res)
	return &res, err
}

func ToSnapReq(req *Req) *SnapReq {
	equalize, _ := strconv.ParseBool(req.Params["equalize"])
	raw, _ := strconv.ParseBool(req.Params["raw"])
	return &SnapReq{
		Client:   req.Params["client"],
		Equalize: equalize,
		Raw:      raw,
	}
}

// WriteSnapReq sends a snapshot request and returns its id.
func WriteSnapReq(w io.Writer, snap *SnapReq) (string, error) {
	req := Req{
		ID:     uuid.New().String(),
		Action: ActionSnapshot,
		Params: map[string]string{
			"client":   snap.Client,
			"equalize": strconv.FormatBool(snap.Equalize),
			"raw":      strconv.FormatBool(snap.Raw),
		},
	}
	return req.ID, json.NewEncoder(w).Encode(&req)
}

func WriteSuccessRes(w io.Writer, id string, frame *Frame, extras map[string]string) error {
	res := Res{
		ID:     id,
		Status: StatusSuccess,
		Extras: extras,
		Frame:  frame,
	}
	return json.NewEncoder(w).Encode(&res)
}

func WriteErrorRes(w io.Writer, id string, err error) error {
	res := Res{
		ID:     id,
		Status: StatusError,
		Error:  err.Error(),
	}
	return json.NewEncoder(w).Encode(&res)
}
