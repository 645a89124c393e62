package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fmueller/voxtype/internal/audio"
	"github.com/fmueller/voxtype/internal/cue"
	"github.com/fmueller/voxtype/internal/domain"
	"github.com/fmueller/voxtype/internal/hotkey"
	"github.com/fmueller/voxtype/internal/record"
	"github.com/fmueller/voxtype/internal/session"
	"go.uber.org/zap"
)

const (
	micCheckDuration = 300 * time.Millisecond
	shutdownTimeout  = 10 * time.Second
)

// runDaemon wires the pipeline and serves hotkey toggles until ctx is done.
// Every error it returns happened before the first toggle could arrive.
func (a *appState) runDaemon(ctx context.Context) error {
	logger := a.log()

	engine, err := a.newEngine(logger)
	if err != nil {
		return err
	}
	model, err := a.prepareModel(ctx, false)
	if err != nil {
		return err
	}

	capture := a.newCapture()
	if a.cfg.MicCheck {
		if err := a.checkMicrophone(ctx, capture); err != nil {
			return err
		}
	}

	observers := cue.Multi{cue.NewConsole(a.errWriter())}
	if a.cfg.Beep {
		b := a.newBeeper(logger)
		defer b.Close()
		observers = append(observers, b)
	}

	sessionCfg := session.Config{
		Capture:           capture,
		Transcriber:       a.newInvoker(engine, model.Path),
		Injector:          a.newInjector(a.injectConfig()),
		Observer:          observers,
		TranscribeTimeout: a.cfg.TranscribeTimeout,
		Logger:            logger,
	}
	recordingDir := ""
	if a.cfg.SaveRecordings {
		st, err := a.openStore()
		if err != nil {
			return err
		}
		sessionCfg.Store = st
		recordingDir = st.Dir()
	}

	ctrl, err := session.New(sessionCfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := ctrl.Close(closeCtx); err != nil {
			logger.Warn("shutdown did not finish cleanly", zap.Error(err))
		}
	}()

	bindings, err := a.cfg.Bindings()
	if err != nil {
		return err
	}
	listener := hotkey.NewListener(hotkey.Config{Debounce: a.debounce, Factory: a.hotkeyFactory, Logger: logger})
	defer listener.Close()
	for _, b := range bindings {
		if err := listener.Register(b, ctrl.Toggle); err != nil {
			return err
		}
	}

	logger.Info("voxtype ready",
		zap.Strings("hotkeys", a.cfg.Hotkeys),
		zap.String("model", model.Name),
		zap.String("inject_mode", a.cfg.InjectMode),
		zap.String("recording_dir", recordingDir),
	)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// checkMicrophone records a short probe. A permission failure stops
// startup; anything else is reported and left for the first session.
func (a *appState) checkMicrophone(ctx context.Context, capture *record.Capture) error {
	logger := a.log()

	failed, err := capture.Start()
	if err != nil {
		return a.micCheckResult(err)
	}

	timer := time.NewTimer(micCheckDuration)
	defer timer.Stop()
	var lost error
	select {
	case lost = <-failed:
	case <-timer.C:
	case <-ctx.Done():
	}

	buf, err := capture.Stop()
	if err = errors.Join(lost, err); err != nil {
		return a.micCheckResult(err)
	}

	if silent, metrics := audio.IsSilent(buf, -90); silent {
		logger.Warn("microphone delivered only silence; check that it is unmuted and that voxtype may use it",
			zap.Int("frames", buf.Frames()),
			zap.Float64("peak_dbfs", metrics.PeakdBFS),
		)
		return nil
	}
	logger.Debug("microphone check passed", zap.Int("frames", buf.Frames()))
	return nil
}

func (a *appState) micCheckResult(err error) error {
	if domain.NeedsPermission(err) {
		return fmt.Errorf("microphone check: %w", err)
	}
	a.log().Warn("microphone check failed", zap.String("kind", domain.Kind(err)), zap.Error(err))
	return nil
}
