package bootstrap

import (
	"context"
	"errors"

	"gazecue/internal/camera"
	"gazecue/internal/config"
	"gazecue/internal/coordinator"
	"gazecue/internal/domain"
	"gazecue/internal/log"
	"gazecue/internal/metrics"
	"gazecue/internal/ports"
	"gazecue/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Config     config.Config

	// Bridge is set when detections come from the webview.
	Bridge *camera.Bridge
	// Metrics is set when a metrics listener is configured. It is not started.
	Metrics *metrics.Server

	push *coordinator.PushFeed
}

// Build loads configuration and wires all backend dependencies.
func Build(events ports.EventSink, media ports.MediaSurface, requester camera.Requester) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	log.Configure(log.Config{Level: cfg.Log.Level})
	return BuildWith(cfg, events, media, requester)
}

// BuildWith wires dependencies for an already resolved configuration.
func BuildWith(cfg config.Config, events ports.EventSink, media ports.MediaSurface, requester camera.Requester) (Services, error) {
	logger := log.Base()

	client, err := coordinator.New(coordinator.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
	})
	if err != nil {
		return Services{}, err
	}

	services := Services{Config: cfg}

	var instructions ports.InstructionSource = client
	if cfg.API.PushURL != "" {
		services.push = coordinator.NewPushFeed(coordinator.PushConfig{URL: cfg.API.PushURL, Logger: logger})
		instructions = services.push
	}

	var detector ports.FaceDetector
	switch cfg.Camera.Source {
	case config.CameraSourceCommand:
		detector = camera.NewProcessDetector(cfg.Camera.DetectorCommand, logger)
	case config.CameraSourceWebview:
		if requester == nil {
			return Services{}, errors.New("webview camera source requires a camera requester")
		}
		services.Bridge = camera.NewBridge(requester, logger)
		detector = services.Bridge
	default:
		return Services{}, errors.New("unknown camera source " + cfg.Camera.Source)
	}

	services.Controller = usecase.NewSessionController(
		client,
		instructions,
		client,
		detector,
		media,
		events,
		usecase.Config{
			Camera: ports.CameraConfig{
				Device: cfg.Camera.Device,
				Width:  cfg.Camera.Width,
				Height: cfg.Camera.Height,
			},
			PollInterval:     cfg.Session.PollInterval,
			SampleInterval:   cfg.Session.SampleInterval,
			VoiceDelay:       cfg.Session.VoiceDelay,
			FullscreenSettle: cfg.Session.FullscreenSettle,
			CompletionDelay:  cfg.Session.CompletionDelay,
			Defaults: domain.SessionConfig{
				StimulusSeconds: cfg.Session.StimulusSeconds,
				VoiceOnLow:      cfg.Session.VoiceOnLow,
				VoiceThreshold:  cfg.Session.VoiceThreshold,
			},
			ResolveMediaURL: client.MediaURL,
			Logger:          logger,
		},
	)

	if cfg.Metrics.Addr != "" {
		services.Metrics = metrics.NewServer(cfg.Metrics.Addr, log.WithComponent("metrics"))
	}

	logger.Info().
		Str("api_base", client.BaseURL()).
		Bool("push_feed", services.push != nil).
		Str("camera_source", cfg.Camera.Source).
		Msg("services wired")
	return services, nil
}

// Close stops any session, then releases the instruction feed and metrics
// listener.
func (s Services) Close(ctx context.Context) error {
	var errs []error
	if s.Controller != nil {
		errs = append(errs, s.Controller.Close(ctx))
	}
	if s.push != nil {
		errs = append(errs, s.push.Close())
	}
	if s.Metrics != nil {
		errs = append(errs, s.Metrics.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
