package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ayusman/swinglab/internal/analyzer"
	"github.com/ayusman/swinglab/internal/config"
	"github.com/ayusman/swinglab/internal/pose"
	"github.com/ayusman/swinglab/internal/server"
	"github.com/ayusman/swinglab/internal/store"
)

func main() {
	fmt.Println("Swinglab - Golf Swing Analysis")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize the store
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	factory := &analyzer.Factory{
		ModelPath:   cfg.ModelPath,
		ClubParams:  cfg.ClubParams(),
		SwingParams: cfg.SwingParams(),
	}
	if cfg.ModelPath == "" {
		log.Println("No club model configured, sessions will run pose-only")
	}

	// Server-side pose detection for uploads that carry pixels but no
	// landmarks. Optional: without the script clients must supply their
	// own landmarks.
	var poseSource pose.Source
	if src, err := pose.NewMediaPipeSource(pose.DefaultConfig()); err != nil {
		log.Printf("Pose detection unavailable, uploads must include landmarks: %v", err)
	} else {
		poseSource = src
		defer src.Close()
	}

	// Find web directory
	webDir := findWebDir()
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir:  webDir,
		Store:      st,
		Factory:    factory,
		PoseSource: poseSource,
	})

	fmt.Printf("Starting server on %s\n", cfg.Addr)
	if err := srv.ListenAndServe(cfg.Addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.swinglab/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".swinglab", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
