package main

import (
	"flag"
	"fmt"
	"log"
	"net"

	"github.com/wthielen/snapcam/capture"
	"github.com/wthielen/snapcam/config"
	"github.com/wthielen/snapcam/output"
	"github.com/wthielen/snapcam/protocol"
)

var (
	socket   = flag.String("socket", "", "Daemon socket (default from config)")
	outFile  = flag.String("o", "frame.png", "Output file")
	equalize = flag.Bool("equalize", false, "Equalize luma before conversion")
	raw      = flag.Bool("raw", false, "Write the packed YUYV frame")
)

func main() {
	flag.Parse()

	addr := *socket
	if addr == "" {
		addr = config.Load().Socket
	}

	conn, err := net.Dial("unix", addr)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	id, err := protocol.WriteSnapReq(conn, &protocol.SnapReq{Client: "check", Equalize: *equalize, Raw: *raw})
	if err != nil {
		log.Fatal(err)
	}

	res, err := protocol.ReadRes(conn)
	if err != nil {
		log.Fatal(err)
	}
	if res.ID != id {
		log.Fatalf("response %s does not match request %s", res.ID, id)
	}
	if res.Status != protocol.StatusSuccess {
		log.Fatalf("Snapshot failed: %s", res.Error)
	}

	f := res.Frame
	frame := &capture.Frame{
		Format: capture.FrameFormat(f.Format),
		Width:  f.Width,
		Height: f.Height,
		Stride: f.Stride,
		Time:   f.Time,
		Data:   f.Data,
	}
	if err := output.WriteFile(*outFile, frame); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Wrote %s (%dx%d %s) successfully\n", *outFile, frame.Width, frame.Height, frame.Format)
}
