// Package establish adapts the SDK's event-driven connect/join into single
// results. Each call owns its listeners and outcome, so calls may overlap.
package establish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Meet/internal/app/oneshot"
	"github.com/dkeye/Meet/internal/core"
	"github.com/rs/zerolog/log"
)

var (
	ErrConnectionFailed = errors.New("Error[jitsiCreateConnection]")
	ErrConferenceFailed = errors.New("Error[jitsiCreateConference]")
)

// abandonTimeout bounds the teardown of an attempt whose caller gave up.
const abandonTimeout = 5 * time.Second

type registration struct {
	name core.EventName
	id   core.ListenerID
}

func deregister(src core.EventSource, regs []registration) func() {
	return func() {
		for _, r := range regs {
			src.RemoveEventListener(r.name, r.id)
		}
	}
}

// Connect creates one connection and waits for it to be established.
func Connect(ctx context.Context, sdk core.SDK, appID, token string, opts core.ConnectionOptions) (core.Connection, error) {
	conn, err := sdk.NewConnection(appID, token, opts)
	if err != nil {
		log.Error().Err(err).Str("module", "establish").Msg(ErrConnectionFailed.Error())
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	out := oneshot.New[core.Connection](nil)
	regs := []registration{
		{core.ConnectionEstablished, conn.AddEventListener(core.ConnectionEstablished, func(core.Event) {
			out.Resolve(conn)
		})},
		{core.ConnectionFailed, conn.AddEventListener(core.ConnectionFailed, func(e core.Event) {
			out.Reject(failure(e.Err))
		})},
	}
	out.SetRelease(deregister(conn, regs))

	conn.Connect()

	res, err := out.Wait(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "establish").Str("url", opts.ServiceURL).Msg(ErrConnectionFailed.Error())
		if ctx.Err() != nil {
			abandon(ctx, "connection", conn.Disconnect)
		}
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	log.Info().Str("module", "establish").Str("url", opts.ServiceURL).Msg("connection established")
	return res, nil
}

// JoinConference initialises one conference on conn and waits for the join.
func JoinConference(ctx context.Context, conn core.Connection, roomID string, opts core.ConferenceOptions) (core.Conference, error) {
	conf, err := conn.InitConference(roomID, opts)
	if err != nil {
		log.Error().Err(err).Str("module", "establish").Str("room", roomID).Msg(ErrConferenceFailed.Error())
		return nil, fmt.Errorf("%w: %w", ErrConferenceFailed, err)
	}

	out := oneshot.New[core.Conference](nil)
	fail := func(e core.Event) { out.Reject(failure(e.Err)) }
	regs := []registration{
		{core.ConferenceJoined, conf.AddEventListener(core.ConferenceJoined, func(core.Event) {
			out.Resolve(conf)
		})},
		{core.ConferenceFailed, conf.AddEventListener(core.ConferenceFailed, fail)},
		{core.ConferenceError, conf.AddEventListener(core.ConferenceError, fail)},
	}
	out.SetRelease(deregister(conf, regs))

	conf.Join()

	res, err := out.Wait(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "establish").Str("room", roomID).Msg(ErrConferenceFailed.Error())
		if ctx.Err() != nil {
			abandon(ctx, "conference", conf.Leave)
		}
		return nil, fmt.Errorf("%w: %w", ErrConferenceFailed, err)
	}
	log.Info().Str("module", "establish").Str("room", roomID).Msg("conference joined")
	return res, nil
}

// abandon tears down an attempt that is still in flight after ctx ended, so
// a late establishment does not leave a live connection or conference.
func abandon(ctx context.Context, what string, teardown func(context.Context) error) {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abandonTimeout)
	defer cancel()
	if err := teardown(tctx); err != nil {
		log.Warn().Err(err).Str("module", "establish").Str("what", what).Msg("teardown after cancel")
	}
}

var errUnknown = errors.New("unknown failure")

// failure keeps a failure event without an error from reading as success.
func failure(err error) error {
	if err == nil {
		return errUnknown
	}
	return err
}
