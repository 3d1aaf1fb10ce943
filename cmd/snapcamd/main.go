package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/pkg/errors"

	"github.com/wthielen/snapcam"
	"github.com/wthielen/snapcam/capture"
	"github.com/wthielen/snapcam/config"
	"github.com/wthielen/snapcam/protocol"
	"github.com/wthielen/snapcam/utils/thread"
)

var conf = config.Load()

func main() {
	if err := serve(); err != nil {
		log.Fatal(err)
	}
}

func serve() error {
	if isAlreadyRun(conf.PidFile) {
		return errors.New("already run")
	}

	if err := writeLockFile(conf.PidFile); err != nil {
		return errors.Wrap(err, "Can not write pid file")
	}
	defer os.Remove(conf.PidFile)

	os.Remove(conf.Socket)

	ln, err := net.Listen("unix", conf.Socket)
	if err != nil {
		return errors.Wrap(err, "Listen error")
	}
	defer ln.Close()

	os.Chmod(conf.Socket, 0666)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapper := newSnapper()
	go snapper.run(ctx)

	go func() {
		for {
			fd, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				log.Printf("Accept error: %v\n", err.Error())
				return
			}

			go handle(ctx, snapper, fd)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	daemon.SdNotify(false, daemon.SdNotifyReady)
	sig := <-sigc
	daemon.SdNotify(false, daemon.SdNotifyStopping)
	log.Printf("Caught signal %s: shutting down.", sig)
	return nil
}

type snapJob struct {
	ctx   context.Context
	req   *protocol.SnapReq
	reply chan snapResult
}

type snapResult struct {
	frame *capture.Frame
	err   error
}

// snapper owns the device. Snapshots run one at a time on a single thread,
// which may be pinned to a core.
type snapper struct {
	jobs chan snapJob
}

func newSnapper() *snapper {
	return &snapper{jobs: make(chan snapJob)}
}

func (s *snapper) run(ctx context.Context) {
	if err := thread.SetCPUAffinity(*conf.CPU); err != nil {
		slog.Warn("snapcamd: can not pin capture thread", "cpu", *conf.CPU, "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			frame, err := snapcam.Snapshot(job.ctx, conf, &snapcam.SnapOption{
				Equalize: job.req.Equalize,
				Raw:      job.req.Raw,
			})
			job.reply <- snapResult{frame: frame, err: err}
		}
	}
}

func (s *snapper) snap(ctx context.Context, req *protocol.SnapReq) (*capture.Frame, error) {
	job := snapJob{ctx: ctx, req: req, reply: make(chan snapResult, 1)}
	select {
	case s.jobs <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	res := <-job.reply
	return res.frame, res.err
}

func handle(ctx context.Context, s *snapper, c net.Conn) {
	defer c.Close()

	for {
		req, err := protocol.ReadReq(c)
		if err != nil {
			if err.Error() != "EOF" {
				log.Println("Can not read request", err)
			}
			return
		}

		switch req.Action {
		case protocol.ActionSnapshot:
			snapReq := protocol.ToSnapReq(req)
			slog.Info("snapcamd: snapshot requested", "id", req.ID, "client", snapReq.Client)

			frame, err := s.snap(ctx, snapReq)
			if err != nil {
				slog.Error("snapcamd: snapshot failed",
					"id", req.ID,
					"kind", capture.KindOf(err),
					"error", err,
				)
				protocol.WriteErrorRes(c, req.ID, err)
				continue
			}
			protocol.WriteSuccessRes(c, req.ID, &protocol.Frame{
				Format: string(frame.Format),
				Width:  frame.Width,
				Height: frame.Height,
				Stride: frame.Stride,
				Time:   frame.Time,
				Data:   frame.Data,
			}, map[string]string{"device": conf.Device})

		default:
			protocol.WriteErrorRes(c, req.ID, fmt.Errorf("unknown action %q", req.Action))
		}
	}
}

func isAlreadyRun(path string) bool {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false
	}

	pidStr, err := os.ReadFile(path)
	if err != nil {
		log.Println("Can not read pid file", err)
		return false
	}
	pid, err := strconv.Atoi(string(pidStr))
	if err != nil {
		log.Println("Invalid existing pid file", err)
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		log.Println("Can not find current process", err)
		return false
	}

	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}

	return false
}

func writeLockFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(f, "%d", os.Getpid()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
