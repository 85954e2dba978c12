// Command wsclient connects to the mini-app event stream and prints every
// event it receives. It is meant for local development.
package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"

	"taskbot/internal/model"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/spf13/viper"
)

func main() {
	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()
	viper.SetDefault("ws_url", "ws://localhost:8888/api/v1/ws/")

	initData := viper.GetString("ws_init_data")
	if initData == "" {
		log.Fatal("APP_WS_INIT_DATA must hold the mini-app init data")
	}

	header := http.Header{}
	header.Add("Authorization", "Telegram "+initData)

	conn, _, err := websocket.DefaultDialer.Dial(viper.GetString("ws_url"), header)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer conn.Close()

	events := make(chan model.Event)

	go func() {
		defer close(events)
		for {
			_, p, err := conn.ReadMessage()
			if err != nil {
				log.Println("read error:", err)
				return
			}

			var event model.Event
			if err := json.Unmarshal(p, &event); err != nil {
				log.Printf("unexpected message: %s\n", p)
				continue
			}
			events <- event
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			out, _ := json.MarshalIndent(event.Payload, "", "  ")
			log.Printf("%s for user %d:\n%s\n", event.Type, event.UserID, out)
		case <-interrupt:
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
