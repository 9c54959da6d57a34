// Package content answers selection requests for the dragged paths.
package content

import (
	"errors"
	"fmt"
	"log/slog"

	"xdrop/internal/payload"
	"xdrop/internal/xdnd"
)

// Request is an inbound conversion request for the drag selection.
type Request struct {
	Requestor xdnd.Window
	Selection xdnd.Atom
	Target    xdnd.Atom
	Property  xdnd.Atom
	Time      xdnd.Timestamp
}

// Responder writes replies back to the requestor.
type Responder interface {
	// WriteProperty stores 8-bit data of type typ in prop on w.
	WriteProperty(w xdnd.Window, prop, typ xdnd.Atom, data []byte) error
	// Notify tells the requestor the conversion is done. A zero property
	// means the conversion was refused.
	Notify(req Request, prop xdnd.Atom) error
}

// Recorder counts served and refused requests. May be nil.
type Recorder interface {
	Served(target string, bytes int)
	Refused()
}

// Server is stateless apart from the payload it serves.
type Server struct {
	set   *payload.PathSet
	atoms *xdnd.Atoms
	resp  Responder
	rec   Recorder
	log   *slog.Logger
}

// NewServer creates a content server for set.
func NewServer(set *payload.PathSet, atoms *xdnd.Atoms, resp Responder, rec Recorder, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{set: set, atoms: atoms, resp: resp, rec: rec, log: log}
}

// Lookup returns the encoding served for target, if any.
func (s *Server) Lookup(target xdnd.Atom) (payload.Encoding, string, bool) {
	switch target {
	case s.atoms.URIList:
		return s.set.URIList(), xdnd.NameURIList, true
	case s.atoms.String:
		return s.set.Text(), xdnd.NameString, true
	}
	return payload.Encoding{}, "", false
}

// Serve answers one request. Unsupported targets are refused with an
// empty notification; the returned error only reports delivery failures.
func (s *Server) Serve(req Request) error {
	// Obsolete clients leave the property empty and expect the target name.
	prop := req.Property
	if prop == 0 {
		prop = req.Target
	}

	enc, name, ok := s.Lookup(req.Target)
	if !ok {
		s.log.Debug("refusing selection request", "requestor", req.Requestor.String(), "target", uint32(req.Target))
		if s.rec != nil {
			s.rec.Refused()
		}
		return s.notify(req, 0)
	}

	if err := s.resp.WriteProperty(req.Requestor, prop, req.Target, enc.Bytes()); err != nil {
		// The requestor still gets an answer so it does not wait forever.
		werr := fmt.Errorf("write %s to %s: %w", name, req.Requestor, err)
		return errors.Join(werr, s.notify(req, 0))
	}

	s.log.Debug("served selection request", "requestor", req.Requestor.String(), "target", name, "bytes", enc.Len())
	if s.rec != nil {
		s.rec.Served(name, enc.Len())
	}
	return s.notify(req, prop)
}

func (s *Server) notify(req Request, prop xdnd.Atom) error {
	if err := s.resp.Notify(req, prop); err != nil {
		return fmt.Errorf("notify %s: %w", req.Requestor, err)
	}
	return nil
}
