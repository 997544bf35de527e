package main

import (
	_ "github.com/eleven-am/tts-gateway/docs"
	"github.com/eleven-am/tts-gateway/internal/bootstrap"
)

//go:generate swag init -g cmd/server/main.go -d ../../ -o ../../docs

// @title TTS Gateway API
// @version 1.0.0
// @description HTTP front end for a streaming text-to-speech backend reached over one shared websocket

// @host localhost:8080
// @BasePath /

func main() {
	bootstrap.Run()
}
