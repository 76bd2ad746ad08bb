package laneclient

import "github.com/lanekit/lanelink/internal/wire"

// Outbound message shapes for the lane server protocol. Every document
// carries a "type" discriminator; the server routes on it.

type registrationMessage struct {
	Type       string `json:"type"`
	LaneID     string `json:"lane_id"`
	Startup    bool   `json:"startup"`
	ClientIP   string `json:"client_ip"`
	ListenPort int    `json:"listen_port"`
	Timestamp  int64  `json:"timestamp"`
}

type heartbeatMessage struct {
	Type      string `json:"type"`
	LaneID    string `json:"lane_id"`
	Timestamp int64  `json:"timestamp"`
}

type bowlerMoveMessage struct {
	Type string         `json:"type"`
	Data bowlerMoveData `json:"data"`
}

type bowlerMoveData struct {
	ToLane     string        `json:"to_lane"`
	BowlerData wire.Document `json:"bowler_data"`
	MoveID     string        `json:"move_id"`
}

type teamMoveMessage struct {
	Type string       `json:"type"`
	Data teamMoveData `json:"data"`
}

type teamMoveData struct {
	ToLane     string      `json:"to_lane"`
	FromLane   string      `json:"from_lane"`
	Bowlers    interface{} `json:"bowlers"`
	GameNumber int         `json:"game_number"`
}

type frameDataMessage struct {
	Type string        `json:"type"`
	Data frameDataBody `json:"data"`
}

type frameDataBody struct {
	LaneID     string        `json:"lane_id"`
	BowlerName string        `json:"bowler_name"`
	FrameNum   int           `json:"frame_num"`
	FrameData  wire.Document `json:"frame_data"`
	Timestamp  int64         `json:"timestamp"`
}

type gameCompleteMessage struct {
	Type string           `json:"type"`
	Data gameCompleteData `json:"data"`
}

type gameCompleteData struct {
	LaneID    string        `json:"lane_id"`
	GameData  wire.Document `json:"game_data"`
	Timestamp int64         `json:"timestamp"`
}
