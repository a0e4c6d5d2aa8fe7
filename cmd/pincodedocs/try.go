package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	perrors "github.com/Maharshi-24/Documentation-PostalPincodes/internal/errors"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/executor"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/registry"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/snippet"
	"github.com/Maharshi-24/Documentation-PostalPincodes/internal/urlbuilder"
	"github.com/Maharshi-24/Documentation-PostalPincodes/pkg/playground"
)

func runTry(cmd *cobra.Command, args []string) error {
	values, err := parseSets(sets)
	if err != nil {
		return err
	}

	p, err := newPlayground(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	if env != "" {
		if err := p.SetEnvironment(env); err != nil {
			return err
		}
	}

	d, err := p.Endpoint(args[0])
	if err != nil {
		return err
	}
	st := p.Session()
	st.SelectEndpoint(d.Key)
	st.SetValues(values)

	t := &tryLoop{p: p, d: d, out: cmd.OutOrStdout()}
	return t.run(cmd.Context(), cmd.InOrStdin())
}

// tryLoop feeds stdin lines into the session and prints outcomes. Outcomes
// from the debounced scheduler arrive on another goroutine.
type tryLoop struct {
	p   *playground.Playground
	d   *registry.Descriptor
	out io.Writer
	mu  sync.Mutex
}

func (t *tryLoop) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func (t *tryLoop) deliver(out *executor.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	printOutcome(t.out, out, false)
}

func (t *tryLoop) suppressed(d *registry.Descriptor, err error) {
	var missing []string
	var pe *perrors.PlaygroundError
	if errors.As(err, &pe) {
		missing = urlbuilder.Unresolved(pe.URL)
	}
	t.printf("waiting for %s\n", strings.Join(missing, ", "))
}

func (t *tryLoop) run(ctx context.Context, in io.Reader) error {
	st := t.p.Session()
	sched := t.p.Scheduler(t.deliver, executor.OnSuppressed(t.suppressed))
	defer sched.Close()

	if t.d.IsAutoTrigger() {
		t.printf("%s fires %v after the last change. Enter name=value lines, Ctrl-D to quit.\n",
			t.d.Title, t.d.Debounce())
		sched.Trigger(t.d, st)
	} else {
		t.printf("Enter name=value lines, an empty line sends the request, Ctrl-D to quit.\n")
		t.preview()
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			if t.d.IsAutoTrigger() {
				continue
			}
			t.printf("Loading...\n")
			if _, err := sched.Run(ctx, t.d, st); err != nil {
				t.printf("%v\n", err)
			}
			continue
		}

		name, value, ok := strings.Cut(line, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			t.printf("expected name=value, got %q\n", line)
			continue
		}
		if _, known := t.d.Param(name); !known {
			t.printf("%s has no parameter %q\n", t.d.Key, name)
			continue
		}
		st.SetValue(name, value)

		if t.d.IsAutoTrigger() {
			sched.Trigger(t.d, st)
		} else {
			t.preview()
		}
	}
	return scanner.Err()
}

// preview prints the cURL command for the current values.
func (t *tryLoop) preview() {
	text, err := t.p.Snippet(t.d.Key, "", snippet.Curl, t.p.Session())
	if err != nil {
		t.printf("%v\n", err)
		return
	}
	t.printf("%s\n", text)
}
