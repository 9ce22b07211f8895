package permissions

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// classPolicy captures the per-class behavioral differences so that one
// generic check/query/revoke/request implementation serves every resource
// class.
type classPolicy struct {
	normalize func(string) (string, error)
	covers    func(entry, desc string) bool
}

func exactCovers(entry, desc string) bool { return entry == desc }

func netCovers(entry, desc string) bool {
	entry = strings.ToLower(entry)
	desc = strings.ToLower(desc)
	if entry == desc {
		return true
	}
	// An entry without a port covers every port on that host.
	if !strings.Contains(entry, ":") {
		host, _, err := net.SplitHostPort(desc)
		if err != nil {
			return false
		}
		return host == entry
	}
	return false
}

func identity(s string) (string, error) { return s, nil }

var policies = map[Class]classPolicy{
	ClassRead:  {normalize: NormalizePath, covers: pathCovers},
	ClassWrite: {normalize: NormalizePath, covers: pathCovers},
	ClassNet:   {normalize: identity, covers: netCovers},
	ClassEnv:   {normalize: identity, covers: exactCovers},
	ClassRun:   {normalize: identity, covers: exactCovers},
	ClassSys:   {normalize: identity, covers: exactCovers},
	ClassFFI:   {normalize: NormalizePath, covers: pathCovers},
}

// Options carries the already-validated grant state produced by the
// configuration layer. The container performs no parsing of the original
// textual form.
type Options struct {
	AllowAll       bool
	Allow          map[Class]Grant
	Deny           map[Class]Grant
	NetPermissions []Permission
	Prompter       Prompter
}

// Container holds the grant and deny state for every resource class. All
// operations are synchronous; a successful check must precede any driver
// I/O for the same request.
type Container struct {
	mu             sync.Mutex
	allowAll       bool
	allow          map[Class]Grant
	deny           map[Class]Grant
	netPermissions []Permission
	prompter       Prompter
}

// NewContainer builds a container from configuration-derived grants.
// Absent any grant, every check defaults to deny.
func NewContainer(opts Options) *Container {
	c := &Container{
		allowAll: opts.AllowAll,
		allow:    make(map[Class]Grant, len(opts.Allow)),
		deny:     make(map[Class]Grant, len(opts.Deny)),
		prompter: opts.Prompter,
	}
	for class, g := range opts.Allow {
		c.allow[class] = g.clone()
	}
	for class, g := range opts.Deny {
		c.deny[class] = g.clone()
	}
	c.netPermissions = append(c.netPermissions, opts.NetPermissions...)
	if c.prompter == nil {
		c.prompter = DenyPrompter{}
	}
	return c
}

// WasAllowAllPassed reports whether the allow-all override was configured.
// This is provenance, not outcome: a container with every class granted
// individually still reports false.
func (c *Container) WasAllowAllPassed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allowAll
}

// Check gates one descriptor of one resource class. On success it returns
// the normalized descriptor (canonicalized path for file classes), which is
// what the caller must operate on. apiName identifies the requesting
// host-call for diagnostics.
func (c *Container) Check(class Class, descriptor, apiName string) (string, error) {
	normalized, err := c.normalize(class, descriptor)
	if err != nil {
		return "", &DeniedError{Class: class, Descriptor: descriptor, API: apiName}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.stateLocked(class, normalized) {
	case Granted:
		return normalized, nil
	case Prompt:
		if c.prompter.Prompt(class, normalized, apiName) {
			c.addGrantLocked(class, normalized)
			return normalized, nil
		}
	}
	slog.Debug("permission denied", "class", class.String(), "descriptor", descriptor, "api", apiName)
	return "", &DeniedError{Class: class, Descriptor: descriptor, API: apiName}
}

// CheckAll gates blanket access to a whole class (e.g. "read anything").
func (c *Container) CheckAll(class Class, apiName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.allowAll {
		return nil
	}
	if d, ok := c.deny[class]; ok && d.All {
		return &DeniedError{Class: class, Descriptor: "*", API: apiName}
	}
	if a, ok := c.allow[class]; ok && a.All {
		return nil
	}
	return &DeniedError{Class: class, Descriptor: "*", API: apiName}
}

// CheckRead gates a read path, returning the canonicalized location.
func (c *Container) CheckRead(path, apiName string) (string, error) {
	return c.Check(ClassRead, path, apiName)
}

// CheckWrite gates a write path, returning the canonicalized location.
func (c *Container) CheckWrite(path, apiName string) (string, error) {
	return c.Check(ClassWrite, path, apiName)
}

// CheckEnv gates access to one environment variable.
func (c *Container) CheckEnv(variable, apiName string) error {
	_, err := c.Check(ClassEnv, variable, apiName)
	return err
}

// CheckRun gates execution of one subprocess command.
func (c *Container) CheckRun(command, apiName string) error {
	_, err := c.Check(ClassRun, command, apiName)
	return err
}

// CheckNet gates access to a (host, port) pair. A port of zero means the
// port is unknown and only host-wide grants qualify.
func (c *Container) CheckNet(host string, port uint16, apiName string) error {
	desc := strings.ToLower(host)
	if port != 0 {
		desc = net.JoinHostPort(desc, fmt.Sprintf("%d", port))
	}
	_, err := c.Check(ClassNet, desc, apiName)
	return err
}

// CheckNetURL gates access to a full URL. URL-prefix permission records are
// consulted in registration order, first match granting; otherwise the
// host[:port] falls through to the regular net grants.
func (c *Container) CheckNetURL(rawURL, apiName string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return &DeniedError{Class: ClassNet, Descriptor: rawURL, API: apiName}
	}
	port := uint16(0)
	if p := u.Port(); p != "" {
		n, perr := strconv.ParseUint(p, 10, 16)
		if perr != nil {
			return &DeniedError{Class: ClassNet, Descriptor: rawURL, API: apiName}
		}
		port = uint16(n)
	} else {
		switch u.Scheme {
		case "http":
			port = 80
		case "https":
			port = 443
		}
	}
	desc := strings.ToLower(u.Hostname())
	if port != 0 {
		desc = net.JoinHostPort(desc, fmt.Sprintf("%d", port))
	}

	c.mu.Lock()
	if c.allowAll {
		c.mu.Unlock()
		return nil
	}
	denied := c.deniedLocked(ClassNet, desc)
	if !denied {
		for _, p := range c.netPermissions {
			if p.Matches(rawURL) {
				c.mu.Unlock()
				return nil
			}
		}
	}
	c.mu.Unlock()
	if denied {
		return &DeniedError{Class: ClassNet, Descriptor: rawURL, API: apiName}
	}
	return c.CheckNet(u.Hostname(), port, apiName)
}

// Query probes the grant state for a descriptor without prompting or
// mutating anything.
func (c *Container) Query(class Class, descriptor string) State {
	normalized, err := c.normalize(class, descriptor)
	if err != nil {
		return Denied
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked(class, normalized)
}

// Revoke removes every grant that covers the descriptor or sits under it,
// so a broader entry cannot keep the revoked descriptor granted. An empty
// descriptor revokes the entire class. It returns the resulting state.
func (c *Container) Revoke(class Class, descriptor string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	g := c.allow[class]
	if descriptor == "" {
		c.allow[class] = Grant{}
		return c.stateLocked(class, descriptor)
	}
	normalized, err := c.normalize(class, descriptor)
	if err != nil {
		return Denied
	}
	policy := policies[class]
	kept := g.List[:0]
	for _, entry := range g.List {
		if !policy.covers(normalized, entry) && !policy.covers(entry, normalized) {
			kept = append(kept, entry)
		}
	}
	g.List = kept
	c.allow[class] = g
	return c.stateLocked(class, normalized)
}

// Request probes the state and, when undecided, asks the prompter. A
// granted request is remembered for subsequent checks.
func (c *Container) Request(class Class, descriptor string) State {
	normalized, err := c.normalize(class, descriptor)
	if err != nil {
		return Denied
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.stateLocked(class, normalized)
	if state != Prompt {
		return state
	}
	if c.prompter.Prompt(class, normalized, "") {
		c.addGrantLocked(class, normalized)
		return Granted
	}
	return Denied
}

// ChildArg describes the permissions requested for a nested sub-execution.
// Classes absent from Allow inherit nothing; the child starts from exactly
// what is requested.
type ChildArg struct {
	AllowAll       bool
	Allow          map[Class]Grant
	NetPermissions []Permission
}

// Child derives a narrowed permission set. The child can only be equal to
// or more restrictive than the parent: any requested grant the parent does
// not hold is an error, deny rules are inherited wholesale, and mutating
// the child never affects the parent.
func (c *Container) Child(arg ChildArg) (*Container, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if arg.AllowAll && !c.allowAll {
		return nil, fmt.Errorf("child permissions cannot widen parent: allow-all not held")
	}

	child := &Container{
		allowAll: arg.AllowAll,
		allow:    make(map[Class]Grant, len(arg.Allow)),
		deny:     make(map[Class]Grant, len(c.deny)),
		prompter: DenyPrompter{},
	}
	for class, g := range c.deny {
		child.deny[class] = g.clone()
	}
	for class, g := range arg.Allow {
		if g.All && !c.allowAll {
			parent := c.allow[class]
			if !parent.All {
				return nil, fmt.Errorf("child permissions cannot widen parent: %s allow-all not held", class)
			}
		}
		for _, desc := range g.List {
			if c.stateLocked(class, desc) != Granted {
				return nil, fmt.Errorf("child permissions cannot widen parent: %s %q not granted", class, desc)
			}
		}
		child.allow[class] = g.clone()
	}
	for _, p := range arg.NetPermissions {
		held := c.allowAll
		for _, parent := range c.netPermissions {
			if parent == p {
				held = true
				break
			}
		}
		if !held {
			return nil, fmt.Errorf("child permissions cannot widen parent: permission %s not held", p)
		}
		child.netPermissions = append(child.netPermissions, p)
	}
	return child, nil
}

func (c *Container) normalize(class Class, descriptor string) (string, error) {
	policy, ok := policies[class]
	if !ok {
		return "", fmt.Errorf("unknown resource class %d", class)
	}
	return policy.normalize(descriptor)
}

// stateLocked is the single decision routine: allow-all short-circuits,
// an explicit deny wins over any allow, an allow grants, anything else is
// undecided.
func (c *Container) stateLocked(class Class, descriptor string) State {
	if c.allowAll {
		return Granted
	}
	if c.deniedLocked(class, descriptor) {
		return Denied
	}
	if a, ok := c.allow[class]; ok {
		if a.All {
			return Granted
		}
		policy := policies[class]
		for _, entry := range a.List {
			if policy.covers(entry, descriptor) {
				return Granted
			}
		}
	}
	return Prompt
}

func (c *Container) deniedLocked(class Class, descriptor string) bool {
	d, ok := c.deny[class]
	if !ok {
		return false
	}
	if d.All {
		return true
	}
	policy := policies[class]
	for _, entry := range d.List {
		if policy.covers(entry, descriptor) {
			return true
		}
	}
	return false
}

func (c *Container) addGrantLocked(class Class, descriptor string) {
	g := c.allow[class]
	g.List = append(g.List, descriptor)
	c.allow[class] = g
}
