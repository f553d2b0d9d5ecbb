// fridgestate decodes hex-encoded notification captures from stdin, one
// buffer per line, and prints the frames found in each. Handy while staring
// at btmon output.
package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/Gruni22/alpicool-ha-ble/pkg/fridge"
)

func main() {
	scanner := bufio.NewScanner(os.Stdin)
	var d fridge.Demux
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		buf, err := hex.DecodeString(line)
		if err != nil {
			log.Fatal(err)
		}

		for _, f := range d.Push(buf) {
			fmt.Println(Format(f))
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatal(err)
	}
}

// Format renders one decoded frame.
func Format(f fridge.Frame) string {
	if !f.IsStatus() {
		return fmt.Sprintf("echo  cmd=%#02x payload=% 0#x", f.Cmd, f.Payload)
	}

	r := fridge.NewReconciler()
	if err := r.Apply(f); err != nil {
		return fmt.Sprintf("status (unparseable): %s", err)
	}
	s := r.Snapshot()

	out := fmt.Sprintf("status on=%t lock=%t mode=%s batSaver=%s batt=%s %d%% left[set=%d cur=%d hys=%d]",
		s.PoweredOn, s.Locked, s.Mode, s.BatSaver, s.Battery.Volts(), s.Battery.Percent,
		s.Left.Target, s.Left.Current, s.Left.RetDiff)
	if s.Right.Available {
		out += fmt.Sprintf(" right[set=%d cur=%d hys=%d] running=%d",
			s.Right.Target, s.Right.Current, s.Right.RetDiff, s.Running)
	}
	return out
}
