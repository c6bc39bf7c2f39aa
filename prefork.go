package brisa

import (
	"net"
	"os"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/valyala/fasthttp/reuseport"
)

// preforkChildEnv marks a process as a prefork child; the master sets it to
// the child's worker index, and ListenAndServe checks only its presence.
const preforkChildEnv = "BRISA_PREFORK_CHILD"

// realPreforkServer is the default preforkServer implementation: the
// master process spawns runtime.NumCPU() children re-executing the same
// binary with preforkChildEnv set, and a child process just listens and
// serves like a normal instance. Exited children are not restarted. Every child
// binds the same address via SO_REUSEPORT so the kernel load-balances
// accepted connections across them.
type realPreforkServer struct {
	atreugo *Atreugo
}

func newRealPreforkServer(s *Atreugo) preforkServer {
	return &realPreforkServer{atreugo: s}
}

func (p *realPreforkServer) ListenAndServe(addr string) error {
	if os.Getenv(preforkChildEnv) != "" {
		return p.serveChild(addr)
	}
	return p.runMaster(addr)
}

// runMaster spawns one child per CPU and waits. When any child exits, it
// kills the remaining children and returns that child's exit error; the
// exited child is not restarted.
func (p *realPreforkServer) runMaster(addr string) error {
	n := runtime.NumCPU()
	errCh := make(chan error, n)

	children := make([]*exec.Cmd, 0, n)
	for i := 0; i < n; i++ {
		cmd, err := p.spawnChild(i, addr, errCh)
		if err != nil {
			return err
		}
		children = append(children, cmd)
	}

	p.atreugo.log.Printf("brisa: prefork master started %d workers for %s", n, addr)

	err := <-errCh
	for _, c := range children {
		if c.Process != nil {
			_ = c.Process.Kill()
		}
	}
	return err
}

func (p *realPreforkServer) spawnChild(index int, addr string, errCh chan<- error) (*exec.Cmd, error) {
	cmd := exec.Command(os.Args[0], os.Args[1:]...) //nolint:gosec
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), preforkChildEnv+"="+strconv.Itoa(index))

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	go func() {
		errCh <- cmd.Wait()
	}()

	return cmd, nil
}

// serveChild runs this process as one prefork worker: a SO_REUSEPORT
// listener shared with its siblings, served by the embedded fasthttp
// engine exactly like a non-prefork instance.
func (p *realPreforkServer) serveChild(addr string) error {
	network := p.atreugo.cfg.Network
	if network == "" {
		network = "tcp4"
	}

	ln, err := reuseport.Listen(network, addr)
	if err != nil {
		return err
	}

	return p.atreugo.Serve(ln)
}

// reuseportListen builds a plain (non-prefork) SO_REUSEPORT listener for
// Config.Reuseport without Config.Prefork: several independent instances
// of the same binary bind the same address and the kernel load-balances
// across them, letting the deployment scale by adding instances.
func reuseportListen(network, addr string) (net.Listener, error) {
	return reuseport.Listen(network, addr)
}
