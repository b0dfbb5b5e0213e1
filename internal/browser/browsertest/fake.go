// Package browsertest provides an in-memory browser.Driver for tests.
package browsertest

import (
	"context"
	"errors"
	"sync"

	"github.com/maltedev/mercadona-scraper/internal/browser"
)

// Node is a fake element. Children are keyed by the selector that finds them.
type Node struct {
	Text     string
	Attrs    map[string]string
	Children map[string][]*Node
	// OnClick runs when the element is clicked, typically to navigate.
	OnClick func(d *Driver) error
	TextErr error

	Clicks int
	Filled string
}

// NewNode returns a node with the given visible text.
func NewNode(text string) *Node {
	return &Node{Text: text}
}

// Add registers children reachable from n through selector.
func (n *Node) Add(selector string, children ...*Node) *Node {
	if n.Children == nil {
		n.Children = make(map[string][]*Node)
	}
	n.Children[selector] = append(n.Children[selector], children...)
	return n
}

// Attr sets an attribute and returns n.
func (n *Node) Attr(name, value string) *Node {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[name] = value
	return n
}

// NavigatesTo makes a click load url.
func (n *Node) NavigatesTo(url string) *Node {
	n.OnClick = func(d *Driver) error {
		d.push(url)
		return nil
	}
	return n
}

// Page is one fake document.
type Page struct {
	HTML string
	Root *Node
}

// NewPage returns an empty page with the given markup.
func NewPage(html string) *Page {
	return &Page{HTML: html, Root: &Node{}}
}

// Add registers top-level elements reachable through selector.
func (p *Page) Add(selector string, nodes ...*Node) *Page {
	p.Root.Add(selector, nodes...)
	return p
}

// Driver is a fake browser session over a set of pages keyed by URL.
type Driver struct {
	mu      sync.Mutex
	Pages   map[string]*Page
	history []string
	// Visits records every URL loaded by Navigate, click or Back.
	Visits []string
	// Navigations records URLs loaded through Navigate only.
	Navigations []string
	BackErr     error
}

var _ browser.Driver = (*Driver)(nil)

// NewDriver returns a driver showing start.
func NewDriver(start string) *Driver {
	d := &Driver{Pages: make(map[string]*Page)}
	d.push(start)
	return d
}

// Set registers page under url and returns it.
func (d *Driver) Set(url string, page *Page) *Page {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Pages[url] = page
	return page
}

func (d *Driver) push(url string) {
	d.history = append(d.history, url)
	d.Visits = append(d.Visits, url)
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Navigations = append(d.Navigations, url)
	d.push(url)
	return nil
}

func (d *Driver) Back(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.BackErr != nil {
		return d.BackErr
	}
	if len(d.history) < 2 {
		return errors.New("no history to go back to")
	}
	d.history = d.history[:len(d.history)-1]
	d.Visits = append(d.Visits, d.history[len(d.history)-1])
	return nil
}

func (d *Driver) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current()
}

func (d *Driver) current() string {
	if len(d.history) == 0 {
		return ""
	}
	return d.history[len(d.history)-1]
}

func (d *Driver) page() *Page {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Pages[d.current()]
}

func (d *Driver) Content() (string, error) {
	p := d.page()
	if p == nil {
		return "", nil
	}
	return p.HTML, nil
}

func (d *Driver) Find(selector string) (browser.Element, error) {
	p := d.page()
	if p == nil {
		return nil, browser.ErrElementNotFound
	}
	return element{n: p.Root, d: d}.Find(selector)
}

func (d *Driver) FindAll(selector string) ([]browser.Element, error) {
	p := d.page()
	if p == nil {
		return nil, nil
	}
	return element{n: p.Root, d: d}.FindAll(selector)
}

type element struct {
	n *Node
	d *Driver
}

func (e element) Find(selector string) (browser.Element, error) {
	all, err := e.FindAll(selector)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, browser.ErrElementNotFound
	}
	return all[0], nil
}

func (e element) FindAll(selector string) ([]browser.Element, error) {
	nodes := e.n.Children[selector]
	out := make([]browser.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, element{n: n, d: e.d})
	}
	return out, nil
}

func (e element) Text() (string, error) {
	if e.n.TextErr != nil {
		return "", e.n.TextErr
	}
	return e.n.Text, nil
}

func (e element) Attribute(name string) (string, error) {
	return e.n.Attrs[name], nil
}

func (e element) Click() error {
	e.n.Clicks++
	if e.n.OnClick == nil {
		return nil
	}
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.n.OnClick(e.d)
}

func (e element) Fill(value string) error {
	e.n.Filled = value
	return nil
}
