// Copyright 2025 Strata Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package router maps requested model identifiers to backend completion
// pools. Routing is a pure lookup: an unknown model fails immediately with
// the available identifiers, before any memory tier is touched.
package router

import (
	"errors"
	"fmt"
	"sort"

	"github.com/strataml/strata/config"
)

// ErrUnknownModel indicates the requested model has no configured route.
var ErrUnknownModel = errors.New("unknown model")

// Route is a resolved backend target.
type Route struct {
	// BaseURL of the backend pool serving this model.
	BaseURL string

	// Model is the identifier the backend expects, which may differ from
	// the alias the client requested.
	Model string
}

// Router resolves model identifiers to backend routes. Immutable after
// construction, safe for concurrent use.
type Router struct {
	routes map[string]Route
}

// New builds a router from the configured route table.
func New(routes map[string]config.ModelRoute) *Router {
	table := make(map[string]Route, len(routes))
	for alias, r := range routes {
		table[alias] = Route{BaseURL: r.BaseURL, Model: r.Model}
	}
	return &Router{routes: table}
}

// Resolve returns the backend route for the requested model identifier.
// Returns ErrUnknownModel listing the available identifiers when no route
// exists.
func (r *Router) Resolve(model string) (Route, error) {
	route, ok := r.routes[model]
	if !ok {
		return Route{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownModel, model, r.Models())
	}
	return route, nil
}

// Models returns one alias per distinct backend pool, sorted. Aliases that
// share a pool are collapsed so the model list shows each backend once.
func (r *Router) Models() []string {
	byPool := make(map[string]string)
	for alias, route := range r.routes {
		if existing, ok := byPool[route.BaseURL]; !ok || alias < existing {
			byPool[route.BaseURL] = alias
		}
	}
	names := make([]string, 0, len(byPool))
	for _, alias := range byPool {
		names = append(names, alias)
	}
	sort.Strings(names)
	return names
}
