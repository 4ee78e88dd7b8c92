package program

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/drand/vmauth/common/log"
)

var (
	// ErrDuplicateProgram is returned when adding a program twice.
	ErrDuplicateProgram = errors.New("program already added")
	// ErrCyclicCall is returned when a function transitively calls itself.
	ErrCyclicCall = errors.New("cyclic call")
)

// callCacheSize bounds the number of memoized call counts.
const callCacheSize = 256

// Stack is the registry of programs known to an authorizer. It answers the
// input type and call count lookups needed to sign a request and to walk the
// call graph of a function.
//
//nolint:gocritic // the lock guards the program map only
type Stack struct {
	sync.RWMutex
	programs map[ProgramID]*Program
	// memoized results of NumberOfCalls
	calls *lru.Cache
	log   log.Logger
}

// NewStack returns an empty stack.
func NewStack(l log.Logger) *Stack {
	calls, err := lru.New(callCacheSize)
	if err != nil {
		// only fails on a non positive size
		panic(err)
	}
	return &Stack{
		programs: make(map[ProgramID]*Program),
		calls:    calls,
		log:      l,
	}
}

// Add registers p. Every call made by p must land in p itself or in a program
// added before, and must pass as many operands as the callee has inputs.
func (s *Stack) Add(p *Program) error {
	s.Lock()
	defer s.Unlock()
	if _, exists := s.programs[p.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProgram, p.ID)
	}
	for _, f := range p.Functions {
		for _, c := range f.Calls {
			target := c.Target(p.ID)
			var callee *Function
			var err error
			if target == p.ID {
				callee, err = p.Function(c.Function)
			} else {
				callee, err = s.function(target, c.Function)
			}
			if err != nil {
				return fmt.Errorf("%w: %s/%s: %v", ErrInvalidProgram, p.ID, f.Name, err)
			}
			if len(c.Operands) != len(callee.Inputs) {
				return fmt.Errorf("%w: %s/%s calls %s/%s with %d operands, expected %d",
					ErrInvalidProgram, p.ID, f.Name, target, c.Function, len(c.Operands), len(callee.Inputs))
			}
		}
	}
	s.programs[p.ID] = p
	s.log.Debugw("program added", "program", p.ID.String(), "functions", len(p.Functions))
	return nil
}

// Program returns the program registered under id.
func (s *Stack) Program(id ProgramID) (*Program, error) {
	s.RLock()
	defer s.RUnlock()
	p, ok := s.programs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, id)
	}
	return p, nil
}

// Programs returns the ids of every registered program, sorted.
func (s *Stack) Programs() []ProgramID {
	s.RLock()
	defer s.RUnlock()
	ids := make([]ProgramID, 0, len(s.programs))
	for id := range s.programs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Function returns the declaration of id/name.
func (s *Stack) Function(id ProgramID, name Identifier) (*Function, error) {
	s.RLock()
	defer s.RUnlock()
	return s.function(id, name)
}

func (s *Stack) function(id ProgramID, name Identifier) (*Function, error) {
	p, ok := s.programs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, id)
	}
	return p.Function(name)
}

// InputTypes returns the declared input types of id/name.
func (s *Stack) InputTypes(id ProgramID, name Identifier) ([]ValueType, error) {
	f, err := s.Function(id, name)
	if err != nil {
		return nil, err
	}
	return f.Inputs, nil
}

// NumberOfCalls returns the number of requests authorizing id/name takes: one
// for the function itself plus one per transitive nested call.
func (s *Stack) NumberOfCalls(id ProgramID, name Identifier) (int, error) {
	s.RLock()
	defer s.RUnlock()
	return s.numberOfCalls(id, name, make(map[string]bool))
}

func (s *Stack) numberOfCalls(id ProgramID, name Identifier, visiting map[string]bool) (int, error) {
	cacheKey := id.String() + "/" + string(name)
	if n, ok := s.calls.Get(cacheKey); ok {
		return n.(int), nil
	}
	if visiting[cacheKey] {
		return 0, fmt.Errorf("%w: %s", ErrCyclicCall, cacheKey)
	}
	visiting[cacheKey] = true
	defer delete(visiting, cacheKey)

	f, err := s.function(id, name)
	if err != nil {
		return 0, err
	}
	total := 1
	for _, c := range f.Calls {
		n, err := s.numberOfCalls(c.Target(id), c.Function, visiting)
		if err != nil {
			return 0, err
		}
		total += n
	}
	s.calls.Add(cacheKey, total)
	return total, nil
}
