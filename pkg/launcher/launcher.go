package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/kr/pty"
)

// Launcher runs the autopilot SITL binary as a child process.  The autopilot
// console expects a TTY (readline prompts, progress output), so the child is
// wrapped in a PTY and its output copied to our stdout.
type Launcher struct {
	Path string
	Args []string
	Dir  string

	cmd  *exec.Cmd
	done chan struct{}
}

// Start launches the autopilot and begins streaming its console.  The child
// is killed when ctx is cancelled.
func (l *Launcher) Start(ctx context.Context) error {
	if l.Path == "" {
		return fmt.Errorf("no autopilot binary configured")
	}
	cmd := exec.Command(l.Path, l.Args...)
	cmd.Dir = l.Dir
	f, err := pty.Start(cmd)
	if err != nil {
		return err
	}
	l.cmd = cmd
	l.done = make(chan struct{})
	fmt.Println("Started autopilot:", l.Path, l.Args)

	go io.Copy(os.Stdout, f)
	go func() {
		select {
		case <-ctx.Done():
			fmt.Println("Stopping autopilot")
			_ = cmd.Process.Kill()
		case <-l.done:
		}
	}()
	go func() {
		err := cmd.Wait()
		fmt.Println("Autopilot exited:", err)
		_ = f.Close()
		close(l.done)
	}()
	return nil
}

// Done is closed when the autopilot process exits.
func (l *Launcher) Done() <-chan struct{} {
	return l.done
}
