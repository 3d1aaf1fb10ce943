// probe lists the pixel formats and frame sizes a device offers.
package main

import (
	"flag"
	"fmt"
	"log"
	"sort"

	"github.com/blackjack/webcam"

	"github.com/wthielen/snapcam/capture"
)

var device = flag.String("input", "/dev/video0", "Input video device")

func main() {
	flag.Parse()

	cam, err := webcam.Open(*device)
	if err != nil {
		log.Fatalf("%s: %v", *device, err)
	}
	defer cam.Close()

	formats := cam.GetSupportedFormats()
	codes := make([]webcam.PixelFormat, 0, len(formats))
	for f := range formats {
		codes = append(codes, f)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	for _, f := range codes {
		mark := " "
		if uint32(f) == capture.PixelFormatYUYV {
			mark = "*"
		}
		fmt.Printf("%s %s %s\n", mark, fourCC(uint32(f)), formats[f])
		for _, s := range cam.GetSupportedFrameSizes(f) {
			fmt.Printf("    %s\n", frameSize(s))
		}
	}
	fmt.Println("* usable by snapcam")
}

func fourCC(code uint32) string {
	return string([]byte{byte(code), byte(code >> 8), byte(code >> 16), byte(code >> 24)})
}

func frameSize(s webcam.FrameSize) string {
	if s.StepWidth == 0 && s.StepHeight == 0 {
		return fmt.Sprintf("%dx%d", s.MaxWidth, s.MaxHeight)
	}
	return fmt.Sprintf("[%d-%d;%d]x[%d-%d;%d]", s.MinWidth, s.MaxWidth, s.StepWidth, s.MinHeight, s.MaxHeight, s.StepHeight)
}
