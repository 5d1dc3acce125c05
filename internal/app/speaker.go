// ABOUTME: Main speaker application orchestration
// ABOUTME: Wires transport, ingest workers, playback queue and status
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/anderswestberg/alnicko-rapidreach-fw-sub000/internal/alert"
	"github.com/anderswestberg/alnicko-rapidreach-fw-sub000/internal/config"
	"github.com/anderswestberg/alnicko-rapidreach-fw-sub000/internal/device"
	"github.com/anderswestberg/alnicko-rapidreach-fw-sub000/internal/ingest"
	"github.com/anderswestberg/alnicko-rapidreach-fw-sub000/internal/player"
	"github.com/anderswestberg/alnicko-rapidreach-fw-sub000/internal/status"
	"github.com/anderswestberg/alnicko-rapidreach-fw-sub000/internal/storage"
	"github.com/anderswestberg/alnicko-rapidreach-fw-sub000/internal/transport"
	"github.com/anderswestberg/alnicko-rapidreach-fw-sub000/internal/version"
)

// Speaker is the assembled device application.
type Speaker struct {
	cfg       config.Config
	info      device.Info
	store     *storage.Store
	session   *transport.Session
	ctrl      *player.Controller
	queue     *player.Queue
	ingester  *ingest.Ingester
	heartbeat *status.Heartbeat
}

// New wires all components from the configuration.
func New(cfg config.Config) (*Speaker, error) {
	info, err := device.Resolve(cfg.DeviceID)
	if err != nil {
		return nil, err
	}

	store, err := storage.New(cfg.Storage.ScratchDir, cfg.Storage.SavedDir)
	if err != nil {
		return nil, err
	}
	if n := store.SweepScratch(); n > 0 {
		log.Printf("Reclaimed %d stale scratch files", n)
	}

	sink := player.NewOtoSink(cfg.Audio.BlockCount)
	ctrl := player.New(player.Config{
		SampleRate:    cfg.Audio.SampleRate,
		Channels:      cfg.Audio.Channels,
		FrameMs:       cfg.Audio.FrameMs,
		BlockCount:    cfg.Audio.BlockCount,
		SilenceBlocks: cfg.Audio.SilenceBlocks,
		BlockTimeout:  cfg.Audio.BlockTimeout,
		InitialVolume: cfg.Audio.InitialVolume,
		MaxVolume:     cfg.Audio.MaxVolume,
		StandbyIdle:   cfg.Audio.StandbyIdle,
	}, sink)

	queue := player.NewQueue(cfg.Queue.Capacity, ctrl, store, cfg.Queue.FinishWait, cfg.Queue.PlayTimeout)

	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		clientID = "rapidreach-" + info.ID
	}
	session := transport.NewSession(transport.Config{
		Broker:          cfg.MQTT.Broker,
		SecondaryBroker: cfg.MQTT.SecondaryBroker,
		ClientID:        clientID,
		Username:        cfg.MQTT.Username,
		Password:        cfg.MQTT.Password,
		Keepalive:       cfg.MQTT.Keepalive,
		CleanSession:    cfg.MQTT.CleanSession,
		ReconnectMin:    cfg.MQTT.ReconnectMin,
		ReconnectMax:    cfg.MQTT.ReconnectMax,
		FailoverAfter:   cfg.MQTT.FailoverAfter,
		MaxSubs:         cfg.MQTT.MaxSubs,
		FrameBuffer:     cfg.MQTT.FrameBuffer,
	})

	heartbeat := status.New(session, info, "rapidreach/status/"+info.ID, cfg.Status.Interval)
	session.OnState(func(connected bool) {
		if connected {
			heartbeat.Kick()
		}
	})

	ingester := ingest.New(ingest.Config{
		HeaderWindow:    cfg.Ingest.HeaderWindow,
		InlineThreshold: cfg.Ingest.InlineThreshold,
		ChunkSize:       cfg.Ingest.ChunkSize,
	}, store)

	return &Speaker{
		cfg:       cfg,
		info:      info,
		store:     store,
		session:   session,
		ctrl:      ctrl,
		queue:     queue,
		ingester:  ingester,
		heartbeat: heartbeat,
	}, nil
}

// Run starts every component and blocks until ctx is cancelled.
func (s *Speaker) Run(ctx context.Context) error {
	log.Printf("%s %s starting as %s", version.Product, version.Version, s.info.ID)

	for _, topic := range []string{
		"rapidreach/audio/" + s.info.ID,
		"rapidreach/audio/broadcast",
	} {
		if err := s.session.Subscribe(topic); err != nil {
			return fmt.Errorf("register subscription: %w", err)
		}
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.session.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		s.queue.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		s.heartbeat.Run(ctx)
	}()

	for i := 0; i < s.cfg.Ingest.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.ingestLoop(ctx)
		}()
	}

	<-ctx.Done()
	wg.Wait()
	s.ctrl.Close()
	log.Printf("Speaker stopped")
	return nil
}

func (s *Speaker) ingestLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-s.session.Frames():
			s.handleFrame(ctx, frame)
		}
	}
}

func (s *Speaker) handleFrame(ctx context.Context, frame transport.Frame) {
	meta, blob, err := s.ingester.Ingest(ctx, frame.Body, frame.Size)
	if err != nil {
		if errors.Is(err, ingest.ErrTestPing) {
			log.Printf("Test ping on %s", frame.Topic)
			return
		}
		log.Printf("Dropping frame from %s: %v", frame.Topic, err)
		return
	}

	path, scratch, err := s.materialize(meta, blob)
	if err != nil {
		log.Printf("Storing alert from %s failed: %v", frame.Topic, err)
		return
	}

	ok := s.queue.Enqueue(player.Request{
		Path:      path,
		Volume:    meta.Volume,
		Priority:  meta.Priority,
		PlayCount: meta.PlayCount,
		Interrupt: meta.InterruptCurrent,
		Scratch:   scratch,
	})
	if !ok && scratch {
		if err := s.store.Remove(path); err != nil {
			log.Printf("Cleanup of dropped alert failed: %v", err)
		}
	}
}

// materialize turns an ingested blob into a playable file path. Saved alerts
// land in the saved directory and survive playback; everything else is a
// scratch file deleted afterwards.
func (s *Speaker) materialize(meta alert.Metadata, blob ingest.Blob) (path string, scratch bool, err error) {
	if meta.SaveToFile {
		saved, err := s.store.SavedPath(meta.Filename)
		if err != nil {
			if blob.InFile() {
				s.store.Remove(blob.Path)
			}
			return "", false, err
		}
		if blob.InFile() {
			if err := s.store.Copy(blob.Path, saved); err != nil {
				s.store.Remove(blob.Path)
				return "", false, err
			}
			s.store.Remove(blob.Path)
		} else {
			if err := s.store.Write(saved, blob.Data); err != nil {
				return "", false, err
			}
		}
		log.Printf("Saved alert audio as %s", saved)
		return saved, false, nil
	}

	if blob.InFile() {
		return blob.Path, true, nil
	}

	tmp := s.store.ScratchPath()
	if err := s.store.Write(tmp, blob.Data); err != nil {
		return "", false, err
	}
	return tmp, true, nil
}
