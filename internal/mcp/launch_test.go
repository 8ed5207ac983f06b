package mcp

import "testing"

func TestResolveLaunch(t *testing.T) {
	cases := []struct {
		name    string
		target  string
		args    []string
		mode    LaunchMode
		command string
		url     string
	}{
		{name: "python script", target: "./servers/rag.py", mode: LaunchPythonScript, command: "python3"},
		{name: "node script", target: "tools/files.js", mode: LaunchNodeScript, command: "node"},
		{name: "installed binary", target: "harborseal", args: []string{"rag-serve"}, mode: LaunchPackaged, command: "harborseal"},
		{name: "absolute binary path", target: "/usr/local/bin/mcp-server", mode: LaunchPackaged, command: "/usr/local/bin/mcp-server"},
		{name: "no extension fallback", target: "some.server", mode: LaunchPackaged, command: "some.server"},
		{name: "uppercase extension is not a script", target: "SERVER.PY", mode: LaunchPackaged, command: "SERVER.PY"},
		{name: "websocket url", target: "ws://localhost:9000/mcp", mode: LaunchRemote, url: "ws://localhost:9000/mcp"},
		{name: "secure websocket url", target: "wss://tools.example.com/mcp", mode: LaunchRemote, url: "wss://tools.example.com/mcp"},
		{name: "http url", target: "http://localhost:8080/rpc", mode: LaunchRemote, url: "http://localhost:8080/rpc"},
		{name: "https url", target: "https://tools.example.com/rpc", mode: LaunchRemote, url: "https://tools.example.com/rpc"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan := ResolveLaunch(tc.target, tc.args)
			if plan.Mode != tc.mode {
				t.Fatalf("expected mode %s, got %s", tc.mode, plan.Mode)
			}
			if plan.Command != tc.command {
				t.Errorf("expected command %q, got %q", tc.command, plan.Command)
			}
			if plan.URL != tc.url {
				t.Errorf("expected url %q, got %q", tc.url, plan.URL)
			}
		})
	}
}

func TestResolveLaunchScriptArgsFollowTarget(t *testing.T) {
	plan := ResolveLaunch("server.py", []string{"--port", "7777"})
	want := []string{"server.py", "--port", "7777"}
	if len(plan.Args) != len(want) {
		t.Fatalf("expected args %v, got %v", want, plan.Args)
	}
	for i := range want {
		if plan.Args[i] != want[i] {
			t.Fatalf("expected args %v, got %v", want, plan.Args)
		}
	}
}

func TestResolveLaunchPackagedArgsExcludeTarget(t *testing.T) {
	plan := ResolveLaunch("harborseal", []string{"rag-serve"})
	if len(plan.Args) != 1 || plan.Args[0] != "rag-serve" {
		t.Fatalf("expected bare extra args, got %v", plan.Args)
	}
}
