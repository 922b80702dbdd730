package predictor

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// PretrainedName is the id of a shipped model for a memory layout.
func PretrainedName(length, interval, num int) string {
	return fmt.Sprintf("model_n%d_m%d_%d", length, interval, num)
}

// NextModelName returns YYYY_MM_DD_model_N, where N is one more than the
// number of entries in dir already carrying today's date.
func NextModelName(dir string, now time.Time) (string, error) {
	date := now.Format("2006_01_02")

	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("list models: %w", err)
	}
	n := 0
	for _, e := range entries {
		if strings.Contains(e.Name(), date) {
			n++
		}
	}
	return fmt.Sprintf("%s_model_%d", date, n+1), nil
}
