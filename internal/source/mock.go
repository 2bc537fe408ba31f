package source

import (
	"math/rand/v2"

	"github.com/jpalmerr/mcdash/internal/status"
)

// Mock latency bounds in milliseconds, inclusive.
const (
	MockLatencyMin = 5
	MockLatencyMax = 500
)

// MockLatency samples a latency uniformly from [MockLatencyMin, MockLatencyMax].
func MockLatency() int {
	return MockLatencyMin + rand.IntN(MockLatencyMax-MockLatencyMin+1)
}

// mockRecord builds the fixed demo record with a freshly sampled latency.
// Every call returns new slices and maps.
func (a *Adapter) mockRecord() status.Record {
	return status.Record{
		Online:    true,
		LatencyMs: status.Int(a.latency()),
		Players: &status.Players{
			Online: 3,
			Max:    20,
			Sample: []status.Player{
				{Name: "Steve", ID: "00000000-0000-0000-0000-000000000001"},
				{Name: "Alex", ID: "00000000-0000-0000-0000-000000000002"},
				{Name: "Notch", ID: "00000000-0000-0000-0000-000000000003"},
			},
		},
		Version: &status.Version{Name: "1.21.1", Protocol: 767},
		Motd: &status.Motd{
			Plain: "Welcome to the Server!\nHave fun playing!",
			HTML:  `<span style="color: gold;">Welcome to the Server!</span><br><span style="color: gray;">Have fun playing!</span>`,
		},
		Software: status.String("Paper"),
		Extra: map[string]any{
			"hostname": "nes-attack.eulenet.io",
			"port":     42069,
			"plugins":  []string{"EssentialsX", "WorldEdit", "LuckPerms", "Vault"},
		},
	}
}
