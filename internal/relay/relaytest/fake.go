// Package relaytest provides a fake llama.cpp binary for tests.
//
// The fake is the test binary itself: a package's TestMain calls
// RunIfFake first, and a Runner configured with Bin() and Fake.Env()
// re-executes the test binary in fake mode.
package relaytest

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	envFake       = "TUTORD_FAKE_LLAMA"
	envStdout     = "TUTORD_FAKE_STDOUT"
	envStderr     = "TUTORD_FAKE_STDERR"
	envExit       = "TUTORD_FAKE_EXIT"
	envSleep      = "TUTORD_FAKE_SLEEP"
	envArgsFile   = "TUTORD_FAKE_ARGS_FILE"
	envEchoPrompt = "TUTORD_FAKE_ECHO_PROMPT"
)

// Fake describes how the fake binary behaves for one run.
type Fake struct {
	Stdout string
	Stderr string
	Exit   int
	Sleep  time.Duration
	// ArgsFile receives the JSON-encoded argv (without argv[0]) when set.
	ArgsFile string
	// EchoPrompt writes the --prompt value to stdout after Stdout.
	EchoPrompt bool
}

// Env returns the KEY=VALUE pairs that select fake mode with this behavior.
func (f Fake) Env() []string {
	env := []string{
		envFake + "=1",
		envStdout + "=" + f.Stdout,
		envStderr + "=" + f.Stderr,
		envExit + "=" + strconv.Itoa(f.Exit),
		envSleep + "=" + f.Sleep.String(),
		envArgsFile + "=" + f.ArgsFile,
	}
	if f.EchoPrompt {
		env = append(env, envEchoPrompt+"=1")
	}
	return env
}

// Bin returns the path of the running test binary.
func Bin() string {
	p, err := os.Executable()
	if err != nil {
		return os.Args[0]
	}
	return p
}

// ReadArgs decodes the argv recorded by a fake run.
func ReadArgs(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var args []string
	err = json.Unmarshal(b, &args)
	return args, err
}

// RunIfFake acts as the fake binary and exits when fake mode is selected.
// It returns immediately otherwise.
func RunIfFake() {
	if os.Getenv(envFake) != "1" {
		return
	}
	os.Exit(fakeMain(os.Args[1:]))
}

func fakeMain(args []string) int {
	if p := os.Getenv(envArgsFile); p != "" {
		b, _ := json.Marshal(args)
		if err := os.WriteFile(p, b, 0o644); err != nil {
			fmt.Fprintln(os.Stderr, "fake llama: write args:", err)
			return 98
		}
	}
	if d, err := time.ParseDuration(os.Getenv(envSleep)); err == nil && d > 0 {
		time.Sleep(d)
	}
	fmt.Fprint(os.Stdout, os.Getenv(envStdout))
	if os.Getenv(envEchoPrompt) == "1" {
		for i := 0; i+1 < len(args); i++ {
			if args[i] == "--prompt" {
				fmt.Fprint(os.Stdout, args[i+1])
				break
			}
		}
	}
	fmt.Fprint(os.Stderr, os.Getenv(envStderr))
	code, _ := strconv.Atoi(os.Getenv(envExit))
	return code
}
