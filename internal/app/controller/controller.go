// Package controller drives the page. All actions and SDK track events run
// on one loop goroutine, so session state needs no locking.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Meet/internal/app/devices"
	"github.com/dkeye/Meet/internal/app/establish"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

var (
	ErrNotJoined         = errors.New("not in a conference")
	ErrNoCatalog         = errors.New("device list not loaded")
	ErrAlreadyJoined     = errors.New("already in a conference")
	ErrAlreadyStreaming  = errors.New("local stream already running")
	ErrUnknownDeviceType = errors.New("unknown device type")
	ErrStopped           = errors.New("controller stopped")
)

// Page element ids the controller touches.
const (
	ElWelcome        = "welcome"
	ElRoom           = "room"
	ElStart          = "start"
	ElStop           = "stop"
	ElMediaContainer = "media_container"
	ElSelectAudio    = "select_audio"
	ElSelectVideo    = "select_video"
	ElLocalVideo     = "local_video"
)

const (
	eventBuffer     = 64
	shutdownTimeout = 5 * time.Second
)

type Options struct {
	// ServiceURL is the signaling url template, see domain.SessionConfig.ServiceURL.
	ServiceURL string
	P2P        bool
	Resolution string
}

type request struct {
	fn   func(ctx context.Context) error
	done chan error
}

type Controller struct {
	sdk   core.SDK
	md    core.MediaDevices
	prefs *devices.Preferences
	view  core.View
	opts  Options
	sess  *Session

	actions chan request
	events  chan core.Event
	done    chan struct{}

	logger zerolog.Logger
}

func New(sdk core.SDK, md core.MediaDevices, prefs *devices.Preferences, view core.View, sess *Session, opts Options) *Controller {
	if opts.ServiceURL == "" {
		opts.ServiceURL = domain.DefaultServiceURLTemplate
	}
	return &Controller{
		sdk:     sdk,
		md:      md,
		prefs:   prefs,
		view:    view,
		opts:    opts,
		sess:    sess,
		actions: make(chan request),
		events:  make(chan core.Event, eventBuffer),
		done:    make(chan struct{}),
		logger:  log.With().Str("module", "controller").Logger(),
	}
}

// Run executes actions one at a time until ctx is done, then leaves any
// active conference.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	c.logger.Info().Msg("controller loop started")
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case r := <-c.actions:
			r.done <- r.fn(ctx)
		case ev := <-c.events:
			c.handleTrackEvent(ev)
		}
	}
}

func (c *Controller) shutdown() {
	if !c.sess.Joined() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := c.leave(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("leave on shutdown")
	}
}

// do queues fn behind any running action and waits for its result. fn runs
// with the loop context, so a caller giving up does not abort it.
func (c *Controller) do(ctx context.Context, fn func(ctx context.Context) error) error {
	r := request{fn: fn, done: make(chan error, 1)}
	select {
	case c.actions <- r:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-r.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post hands an SDK event to the loop. Called from SDK goroutines.
func (c *Controller) post(ev core.Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Controller) EnterRoom(ctx context.Context, roomName string) error {
	return c.do(ctx, func(ctx context.Context) error { return c.enterRoom(ctx, roomName) })
}

func (c *Controller) StartStream(ctx context.Context) error {
	return c.do(ctx, c.startStream)
}

func (c *Controller) StopStream(ctx context.Context) error {
	return c.do(ctx, c.stopStream)
}

func (c *Controller) SelectDevice(ctx context.Context, id string, t domain.DeviceType) error {
	return c.do(ctx, func(context.Context) error { return c.selectDevice(id, t) })
}

func (c *Controller) Leave(ctx context.Context) error {
	return c.do(ctx, c.leave)
}

func (c *Controller) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.do(ctx, func(context.Context) error {
		st = c.sess.status()
		return nil
	})
	return st, err
}

func (c *Controller) enterRoom(ctx context.Context, roomName string) error {
	if roomName == "" {
		return nil
	}
	if c.sess.Joined() {
		return ErrAlreadyJoined
	}
	cfg, err := c.sess.Config.WithRoom(roomName)
	if err != nil {
		return err
	}
	logger := c.logger.With().Str("room", cfg.RoomID).Logger()

	conn, err := establish.Connect(ctx, c.sdk, cfg.AppID, cfg.Token, core.ConnectionOptions{
		Hosts:      cfg.Hosts(),
		ServiceURL: cfg.ServiceURL(c.opts.ServiceURL),
	})
	if err != nil {
		return err
	}
	conf, err := establish.JoinConference(ctx, conn, cfg.RoomID, core.ConferenceOptions{P2PEnabled: c.opts.P2P})
	if err != nil {
		if derr := conn.Disconnect(ctx); derr != nil {
			logger.Warn().Err(derr).Msg("disconnect after failed join")
		}
		return err
	}
	c.sess.Config = cfg
	c.sess.conn, c.sess.conf = conn, conf
	c.subscribe(conf)

	cat, err := devices.BuildCatalog(ctx, c.md)
	if err != nil {
		logger.Error().Err(err).Msg("device catalog")
		if terr := c.teardown(ctx); terr != nil {
			logger.Warn().Err(terr).Msg("teardown after catalog failure")
		}
		return err
	}
	c.sess.Catalog = &cat
	c.fillSelects(cat)

	if err := c.selectDefaults(); err != nil {
		logger.Warn().Err(err).Msg("select default devices")
	}

	c.showOrLog(ElRoom)
	c.hideOrLog(ElWelcome)
	logger.Info().
		Str("audio", c.sess.Selected.AudioID).
		Str("video", c.sess.Selected.VideoID).
		Msg("entered room")
	return nil
}

func (c *Controller) subscribe(conf core.Conference) {
	for _, name := range []core.EventName{core.TrackAdded, core.TrackRemoved} {
		id := conf.AddEventListener(name, c.post)
		c.sess.listeners = append(c.sess.listeners, registration{name: name, id: id})
	}
}

func (c *Controller) unsubscribe() {
	if c.sess.conf == nil {
		return
	}
	for _, r := range c.sess.listeners {
		c.sess.conf.RemoveEventListener(r.name, r.id)
	}
	c.sess.listeners = nil
}

func (c *Controller) fillSelects(cat domain.Catalog) {
	for sel, list := range map[string][]domain.Device{ElSelectAudio: cat.Audio, ElSelectVideo: cat.Video} {
		opts := make([]core.Option, 0, len(list))
		for _, d := range list {
			opts = append(opts, core.Option{Value: d.DeviceID, Text: d.Label})
		}
		if err := c.view.ClearOptions(sel); err != nil {
			c.logger.Error().Err(err).Str("el", sel).Msg("clear options")
		}
		if err := c.view.AppendOptions(sel, opts); err != nil {
			c.logger.Error().Err(err).Str("el", sel).Msg("append options")
		}
	}
}

// selectDefaults resolves and persists one device per input type.
func (c *Controller) selectDefaults() error {
	if c.sess.Catalog == nil {
		return ErrNoCatalog
	}
	var errs []error
	for _, t := range []domain.DeviceType{domain.DeviceAudio, domain.DeviceVideo} {
		list := bucket(c.sess.Catalog, t)
		if list == nil {
			return fmt.Errorf("%w: %s", ErrNoCatalog, t)
		}
		var id string
		if d, ok := c.prefs.FindDefault(list, t); ok {
			id = d.DeviceID
		}
		errs = append(errs, c.selectDevice(id, t))
	}
	return errors.Join(errs...)
}

func (c *Controller) selectDevice(id string, t domain.DeviceType) error {
	if !c.sess.Selected.Set(t, id) {
		return fmt.Errorf("%w: %q", ErrUnknownDeviceType, t)
	}
	return c.prefs.SaveID(id, t)
}

func (c *Controller) startStream(ctx context.Context) error {
	conf := c.sess.conf
	if conf == nil {
		return ErrNotJoined
	}
	if c.sess.streaming {
		return ErrAlreadyStreaming
	}

	sel := c.sess.Selected
	var kinds []core.TrackType
	if sel.VideoID != "" {
		kinds = append(kinds, core.TrackVideo)
	}
	if sel.AudioID != "" {
		kinds = append(kinds, core.TrackAudio)
	}
	if len(kinds) == 0 {
		c.logger.Warn().Msg("no device selected, nothing to stream")
		return nil
	}

	tracks, err := c.sdk.CreateLocalTracks(ctx, core.LocalTrackOptions{
		Devices:        kinds,
		CameraDeviceID: sel.VideoID,
		MicDeviceID:    sel.AudioID,
		Resolution:     c.opts.Resolution,
	})
	if err != nil {
		return fmt.Errorf("create local tracks: %w", err)
	}

	c.renderLocal(tracks)

	var errs []error
	for _, t := range tracks {
		if err := conf.AddTrack(ctx, t); err != nil {
			c.logger.Error().Err(err).Str("track", t.ID()).Msg("add track")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// renderLocal shows the first local video track. Audio-only streams leave
// the buttons alone.
func (c *Controller) renderLocal(tracks []core.Track) {
	for _, t := range tracks {
		if t.Type() != core.TrackVideo {
			continue
		}
		el, err := c.view.AppendMedia(ElMediaContainer, ElLocalVideo, core.TrackVideo)
		if err != nil {
			c.logger.Error().Err(err).Msg("append local video")
			return
		}
		if err := t.Attach(el); err != nil {
			c.logger.Error().Err(err).Str("track", t.ID()).Msg("attach local video")
		}
		c.sess.streaming = true
		c.hideOrLog(ElStart)
		c.showOrLog(ElStop)
		return
	}
}

func (c *Controller) stopStream(ctx context.Context) error {
	defer c.resetLocal()
	if c.sess.conf == nil {
		return ErrNotJoined
	}
	if err := disposeAll(ctx, c.sess.conf.LocalTracks()); err != nil {
		c.logger.Error().Err(err).Msg("Error[stopPublishStream]")
		return err
	}
	return nil
}

func disposeAll(ctx context.Context, tracks []core.Track) error {
	p := pool.New().WithErrors()
	for _, t := range tracks {
		p.Go(func() error {
			if err := t.Dispose(ctx); err != nil {
				return fmt.Errorf("dispose %s: %w", t.ID(), err)
			}
			return nil
		})
	}
	return p.Wait()
}

func (c *Controller) resetLocal() {
	c.view.RemoveElement(ElLocalVideo)
	c.showOrLog(ElStart)
	c.hideOrLog(ElStop)
	c.sess.streaming = false
}

func (c *Controller) leave(ctx context.Context) error {
	if c.sess.conf == nil {
		return ErrNotJoined
	}
	room := c.sess.Config.RoomID
	err := c.teardown(ctx)
	c.resetLocal()
	c.showOrLog(ElWelcome)
	c.hideOrLog(ElRoom)
	c.logger.Info().Str("room", room).Msg("left room")
	return err
}

// teardown releases the SDK side of the session and unbinds the room.
func (c *Controller) teardown(ctx context.Context) error {
	c.unsubscribe()
	var errs []error
	if conf := c.sess.conf; conf != nil {
		if err := disposeAll(ctx, conf.LocalTracks()); err != nil {
			errs = append(errs, err)
		}
		if err := conf.Leave(ctx); err != nil {
			errs = append(errs, fmt.Errorf("leave conference: %w", err))
		}
	}
	if conn := c.sess.conn; conn != nil {
		if err := conn.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("disconnect: %w", err))
		}
	}
	for id := range c.sess.remote {
		c.view.RemoveElement(id)
	}
	clear(c.sess.remote)
	c.sess.conn, c.sess.conf, c.sess.Catalog = nil, nil, nil
	c.sess.Config.RoomID = ""
	return errors.Join(errs...)
}

func (c *Controller) handleTrackEvent(ev core.Event) {
	t := ev.Track
	if t == nil || t.IsLocal() {
		return
	}
	switch ev.Name {
	case core.TrackAdded:
		c.onRemoteTrackAdded(t)
	case core.TrackRemoved:
		c.onRemoteTrackRemoved(t)
	}
}

func (c *Controller) onRemoteTrackAdded(t core.Track) {
	if c.sess.conf == nil {
		return
	}
	el, err := c.view.AppendMedia(ElMediaContainer, t.ID(), t.Type())
	if err != nil {
		c.logger.Error().Err(err).Str("track", t.ID()).Msg("append remote media")
		return
	}
	if err := t.Attach(el); err != nil {
		c.logger.Error().Err(err).Str("track", t.ID()).Msg("attach remote track")
		c.view.RemoveElement(t.ID())
		return
	}
	c.sess.remote[t.ID()] = struct{}{}
	c.logger.Debug().Str("track", t.ID()).Str("type", string(t.Type())).Msg("remote track added")
}

func (c *Controller) onRemoteTrackRemoved(t core.Track) {
	c.view.RemoveElement(t.ID())
	delete(c.sess.remote, t.ID())
	c.logger.Debug().Str("track", t.ID()).Msg("remote track removed")
}

func (c *Controller) showOrLog(id string) {
	if err := c.view.Show(id); err != nil {
		c.logger.Error().Err(err).Str("el", id).Msg("show")
	}
}

func (c *Controller) hideOrLog(id string) {
	if err := c.view.Hide(id); err != nil {
		c.logger.Error().Err(err).Str("el", id).Msg("hide")
	}
}
