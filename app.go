package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"gazecue/internal/bootstrap"
	"gazecue/internal/camera"
	"gazecue/internal/config"
	"gazecue/internal/domain"
	"gazecue/internal/log"
	"gazecue/internal/ports"
	"gazecue/internal/usecase"
)

const (
	eventStatus     = "gazecue:status"
	eventError      = "gazecue:error"
	eventComplete   = "gazecue:complete"
	eventAudio      = "gazecue:audio"
	eventVideo      = "gazecue:video"
	eventFullscreen = "gazecue:fullscreen"
	eventCamera     = "gazecue:camera"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services   bootstrap.Services
	controller *usecase.SessionController
	cfg        config.Config
	bootErr    error

	acks *fullscreenAcks
	// emitFn replaces the Wails runtime in tests.
	emitFn func(name string, payload any) bool
}

func NewApp() *App {
	return &App{acks: newFullscreenAcks()}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, newWailsMedia(a), a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	a.controller = services.Controller

	if services.Metrics != nil {
		if err := services.Metrics.Start(); err != nil {
			logger := log.WithComponent("app")
			logger.Warn().Err(err).Msg("metrics listener unavailable")
		}
	}
	a.StatusChanged(a.controller.Status())
}

func (a *App) shutdown(ctx context.Context) {
	if a.controller == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.services.Close(shutdownCtx); err != nil {
		logger := log.WithComponent("app")
		logger.Warn().Err(err).Msg("shutdown incomplete")
	}
}

// StartSession begins an attention session for the resolved student.
func (a *App) StartSession(req domain.StartRequest) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	return a.controller.Start(a.ctx, req)
}

// StopSession ends the active session and notifies the coordinator.
func (a *App) StopSession() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.Stop(a.ctx)
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateIdle, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle}
	}
	return a.controller.Status()
}

// GetSessionDefaults returns the prefilled session inputs.
func (a *App) GetSessionDefaults() domain.SessionConfig {
	cfg := a.cfg
	if a.controller == nil {
		cfg = config.Defaults()
	}
	return domain.SessionConfig{
		StimulusSeconds: cfg.Session.StimulusSeconds,
		VoiceOnLow:      cfg.Session.VoiceOnLow,
		VoiceThreshold:  cfg.Session.VoiceThreshold,
	}
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	info := map[string]string{
		"apiBase":        a.cfg.API.BaseURL,
		"cameraSource":   a.cfg.Camera.Source,
		"pollIntervalMs": strconv.FormatInt(a.cfg.Session.PollInterval.Milliseconds(), 10),
		"sampleMs":       strconv.FormatInt(a.cfg.Session.SampleInterval.Milliseconds(), 10),
		"configFile":     a.cfg.File,
	}
	if a.cfg.API.PushURL != "" {
		info["pushFeed"] = a.cfg.API.PushURL
	}
	if a.cfg.Metrics.Addr != "" {
		info["metricsAddr"] = a.cfg.Metrics.Addr
	}
	return info
}

// RequestFullscreen retries fullscreen for the running session.
func (a *App) RequestFullscreen() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.RequestFullscreen(a.ctx)
}

// ReportMediaEvent forwards an audio or video element event.
func (a *App) ReportMediaEvent(event domain.MediaEvent) {
	if a.controller == nil {
		return
	}
	a.controller.HandleMediaEvent(event)
}

// SubmitDetection hands one page-side FaceMesh result to the capture unit.
// It reports false when no camera stream is open.
func (a *App) SubmitDetection(message camera.DetectionMessage) bool {
	if a.services.Bridge == nil {
		return false
	}
	return a.services.Bridge.Submit(message)
}

// ReportCameraError fails the open camera stream.
func (a *App) ReportCameraError(reason string) {
	if a.services.Bridge == nil {
		return
	}
	a.services.Bridge.Fail(reason)
}

// FullscreenResult acknowledges a fullscreen request sent to the page.
func (a *App) FullscreenResult(requestID string, ok bool, detail string) bool {
	if a.acks == nil {
		return false
	}
	return a.acks.resolve(requestID, ok, detail)
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// StatusChanged emits the session snapshot to the frontend.
func (a *App) StatusChanged(status domain.Status) {
	a.emit(eventStatus, status)
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.emit(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

// SessionComplete tells the page a finished session is ready for review.
func (a *App) SessionComplete(studentID string) {
	a.emit(eventComplete, map[string]string{"studentId": studentID})
}

// OpenCamera asks the page to start its camera and FaceMesh loop.
func (a *App) OpenCamera(cfg ports.CameraConfig) error {
	payload := map[string]any{
		"op":     "start",
		"device": cfg.Device,
		"width":  cfg.Width,
		"height": cfg.Height,
	}
	if !a.emit(eventCamera, payload) {
		return errHostNotReady
	}
	return nil
}

// CloseCamera asks the page to release the camera.
func (a *App) CloseCamera() {
	a.emit(eventCamera, map[string]string{"op": "stop"})
}

var errHostNotReady = errors.New("webview is not ready")

func (a *App) emit(name string, payload any) bool {
	if a.emitFn != nil {
		return a.emitFn(name, payload)
	}
	if a.ctx == nil {
		return false
	}
	runtime.EventsEmit(a.ctx, name, payload)
	return true
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeStart:
		return "Error starting session"
	case domain.ErrorCodeCamera:
		return "Failed to access camera. Please grant camera permissions."
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
