package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestSnapshotExchange(t *testing.T) {
	var conn bytes.Buffer

	id, err := WriteSnapReq(&conn, &SnapReq{Client: "check", Equalize: true})
	if err != nil {
		t.Fatalf("WriteSnapReq: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("request id %q is not a uuid: %v", id, err)
	}

	req, err := ReadReq(&conn)
	if err != nil {
		t.Fatalf("ReadReq: %v", err)
	}
	if req.ID != id || req.Action != ActionSnapshot {
		t.Errorf("got request %+v", req)
	}
	snap := ToSnapReq(req)
	if snap.Client != "check" || !snap.Equalize || snap.Raw {
		t.Errorf("ToSnapReq = %+v", snap)
	}

	frame := &Frame{Format: "RGB24", Width: 1, Height: 1, Stride: 3, Data: []byte{1, 2, 3}}
	if err := WriteSuccessRes(&conn, req.ID, frame, nil); err != nil {
		t.Fatal(err)
	}
	res, err := ReadRes(&conn)
	if err != nil {
		t.Fatalf("ReadRes: %v", err)
	}
	if res.Status != StatusSuccess || res.ID != id || res.Frame == nil || !bytes.Equal(res.Frame.Data, frame.Data) {
		t.Errorf("success response %+v", res)
	}

	if err := WriteErrorRes(&conn, req.ID, errors.New("device busy")); err != nil {
		t.Fatal(err)
	}

	res, err = ReadRes(&conn)
	if err != nil {
		t.Fatalf("ReadRes: %v", err)
	}
	if res.Status != StatusError || res.Error != "device busy" || res.Frame != nil {
		t.Errorf("error response %+v", res)
	}
}
