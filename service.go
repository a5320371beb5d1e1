package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"text2image/core"

	"github.com/fatih/color"
	"github.com/kardianos/service"
)

const serviceStopTimeout = 90 * time.Second

// program adapts run to the service manager's Start/Stop lifecycle.
type program struct {
	envPath string
	stop    chan struct{}
	exit    chan struct{}
	code    int
}

func (p *program) Start(s service.Service) error {
	p.stop = make(chan struct{})
	p.exit = make(chan struct{})
	go func() {
		defer close(p.exit)
		p.code = run(p.envPath, p.stop)
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	close(p.stop)
	select {
	case <-p.exit:
		return nil
	case <-time.After(serviceStopTimeout):
		return fmt.Errorf("timeout waiting for service to stop")
	}
}

func serviceConfig(envPath string) *service.Config {
	cfg := &service.Config{
		Name:        "text2image",
		DisplayName: "Text to Image",
		Description: "Local text-to-image web front end",
	}
	if envPath != "" {
		cfg.Arguments = []string{"-env", envPath}
	}
	return cfg
}

// runService runs under the platform service manager.
func runService(envPath string) int {
	prg := &program{envPath: envPath}
	s, err := service.New(prg, serviceConfig(envPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create service: %v\n", err)
		return core.ExitCodeError
	}
	if err := s.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "service run failed: %v\n", err)
		return core.ExitCodeError
	}
	return prg.code
}

// controlService handles -service install|uninstall|start|stop|restart|status.
// The env path is made absolute so the installed service finds it.
func controlService(cmd, envPath string) int {
	if abs, err := filepath.Abs(envPath); err == nil {
		envPath = abs
	}
	s, err := service.New(&program{envPath: envPath}, serviceConfig(envPath))
	if err != nil {
		color.Red("Failed to create service: %v", err)
		return core.ExitCodeError
	}

	if cmd == "status" {
		status, err := s.Status()
		if err != nil {
			color.Red("Failed to get service status: %v", err)
			return core.ExitCodeError
		}
		switch status {
		case service.StatusRunning:
			fmt.Println("Service is running")
		case service.StatusStopped:
			fmt.Println("Service is stopped")
		default:
			fmt.Println("Service status unknown")
		}
		return core.ExitCodeSuccess
	}

	if err := service.Control(s, cmd); err != nil {
		color.Red("Service %s failed: %v", cmd, err)
		fmt.Printf("Valid actions: %v, status\n", service.ControlAction)
		return core.ExitCodeConfig
	}
	color.Green("Service %s succeeded", cmd)
	return core.ExitCodeSuccess
}
