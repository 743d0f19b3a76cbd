// wakesim pretends to be an ESP32 wake sensor for bench testing the
// sensor bridge: it connects, announces itself and fires a wake on
// every enter press (or on a timer with -interval). Typing "ping"
// measures the round trip instead.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/waifuisalie/Talking-Buddy/pkg/protocol"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "Bridge host:port")
	id := flag.String("id", "wakesim-1", "Sensor ID")
	word := flag.String("word", "buddy", "Wake word reported with each wake")
	confidence := flag.Float64("confidence", 0.92, "Detection confidence reported with each wake")
	interval := flag.Duration("interval", 0, "Fire wakes on a timer instead of enter presses")
	flag.Parse()

	url := fmt.Sprintf("ws://%s/ws/sensor/%s", *addr, *id)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", url, err)
		os.Exit(1)
	}
	defer conn.Close()
	fmt.Printf("connected to %s\n", url)

	if err := send(conn, mustMessage(protocol.NewHelloMessage(*id, "wakesim", "dev"))); err != nil {
		fmt.Fprintf(os.Stderr, "hello: %v\n", err)
		os.Exit(1)
	}

	go readLoop(conn)

	if *interval > 0 {
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()
		for range ticker.C {
			fireWake(conn, *id, *word, *confidence)
		}
		return
	}

	fmt.Println("press enter to wake, type \"ping\" to measure latency, ctrl-d to quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if scanner.Text() == "ping" {
			msg := mustMessage(protocol.NewPingMessage(*id, time.Now().UnixMilli()))
			if err := send(conn, msg); err != nil {
				fmt.Fprintf(os.Stderr, "ping: %v\n", err)
				return
			}
			continue
		}
		fireWake(conn, *id, *word, *confidence)
	}
}

// readLoop prints everything the bridge pushes back.
func readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			fmt.Fprintf(os.Stderr, "connection closed: %v\n", err)
			os.Exit(1)
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			continue
		}
		switch msg.Type {
		case protocol.TypeWakeAck:
			if ack, err := protocol.GetWakeAckData(msg); err == nil {
				fmt.Printf("ack: accepted=%v state=%s\n", ack.Accepted, ack.State)
			}
		case protocol.TypeSleep:
			if sleep, err := protocol.GetSleepData(msg); err == nil {
				fmt.Printf("sleep: %s, wake word detection resumes\n", sleep.State)
			}
		case protocol.TypePong:
			if pong, err := protocol.GetPongData(msg); err == nil {
				fmt.Printf("pong: %dms\n", pong.LatencyMs)
			}
		default:
			fmt.Printf("%s: %s\n", msg.Type, string(msg.Data))
		}
	}
}

func fireWake(conn *websocket.Conn, id, word string, confidence float64) {
	msg := mustMessage(protocol.NewWakeMessage(id, word, confidence))
	if err := send(conn, msg); err != nil {
		fmt.Fprintf(os.Stderr, "wake: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wake %q sent\n", word)
}

func send(conn *websocket.Conn, msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func mustMessage(msg *protocol.Message, err error) *protocol.Message {
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
	return msg
}
