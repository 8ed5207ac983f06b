package mcp

import "strings"

// LaunchMode classifies how a provider target is reached. Classification is
// total: every target resolves to exactly one mode, and unknown local
// targets fall back to LaunchPackaged rather than failing.
type LaunchMode int

const (
	// LaunchPythonScript runs a *.py target under the python3 interpreter.
	LaunchPythonScript LaunchMode = iota
	// LaunchNodeScript runs a *.js target under node.
	LaunchNodeScript
	// LaunchPackaged executes the target directly as an installed runnable.
	LaunchPackaged
	// LaunchRemote reaches the provider over ws(s):// or http(s)://.
	LaunchRemote
)

func (m LaunchMode) String() string {
	switch m {
	case LaunchPythonScript:
		return "python-script"
	case LaunchNodeScript:
		return "node-script"
	case LaunchPackaged:
		return "packaged"
	case LaunchRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// LaunchPlan is a fully resolved way to reach a provider: either a
// subprocess command line or a remote URL, never both.
type LaunchPlan struct {
	Mode    LaunchMode
	Command string
	Args    []string
	URL     string
}

var remoteSchemes = []string{"ws://", "wss://", "http://", "https://"}

// ResolveLaunch classifies a provider target into a LaunchPlan. extraArgs
// are appended after the target for subprocess modes.
func ResolveLaunch(target string, extraArgs []string) LaunchPlan {
	for _, scheme := range remoteSchemes {
		if strings.HasPrefix(target, scheme) {
			return LaunchPlan{Mode: LaunchRemote, URL: target}
		}
	}
	switch {
	case strings.HasSuffix(target, ".py"):
		return LaunchPlan{
			Mode:    LaunchPythonScript,
			Command: "python3",
			Args:    append([]string{target}, extraArgs...),
		}
	case strings.HasSuffix(target, ".js"):
		return LaunchPlan{
			Mode:    LaunchNodeScript,
			Command: "node",
			Args:    append([]string{target}, extraArgs...),
		}
	default:
		return LaunchPlan{
			Mode:    LaunchPackaged,
			Command: target,
			Args:    extraArgs,
		}
	}
}
