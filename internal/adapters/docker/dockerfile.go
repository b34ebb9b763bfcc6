package docker

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.trai.ch/ybt/internal/core/domain"
)

// stepLabel records the setup step an image layer was built from.
const stepLabel = "ch.trai.ybt.step"

// Dockerfile renders a single-layer Dockerfile applying step on top of parent.
// The output is deterministic so identical steps hit the engine's build cache.
func Dockerfile(parent string, step domain.SetupStep) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "FROM %s\n", parent)

	for _, k := range slices.Sorted(maps.Keys(step.Env)) {
		v, err := json.Marshal(step.Env[k])
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "ENV %s=%s\n", k, v)
	}

	if step.Name != "" {
		name, err := json.Marshal(step.Name)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "LABEL %s=%s\n", stepLabel, name)
	}

	if len(step.Run) > 0 {
		// Exec form avoids a second round of shell word splitting.
		argv, err := json.Marshal(step.Run)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "RUN %s\n", argv)
	}

	return b.String(), nil
}
