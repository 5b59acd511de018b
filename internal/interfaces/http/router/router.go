// Package router mounts the ledger HTTP API on a gin engine.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouteRegistrar is anything that can add routes to a gin group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// Router collects unversioned routes such as /health and the resources
// served under /api/{version}. Nothing touches the engine until Setup.
type Router struct {
	engine     *gin.Engine
	apiVersion string
	root       []route
	resources  []RouteRegistrar
}

type RouterOption func(*Router)

// WithAPIVersion changes the "v1" path segment
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.apiVersion = version }
}

func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Register(resources ...RouteRegistrar) *Router {
	r.resources = append(r.resources, resources...)
	return r
}

func (r *Router) Root(method, path string, handlers ...gin.HandlerFunc) *Router {
	r.root = append(r.root, route{method, path, handlers})
	return r
}

func (r *Router) Setup() {
	for _, rt := range r.root {
		r.engine.Handle(rt.method, rt.path, rt.handlers...)
	}
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, res := range r.resources {
		res.RegisterRoutes(api)
	}
}

// Resource is a path prefix with its routes, middleware and nested resources
type Resource struct {
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
	children   []*Resource
}

func NewResource(prefix string) *Resource {
	return &Resource{prefix: prefix}
}

// Use adds middleware that runs for this resource and everything nested in it
func (res *Resource) Use(middleware ...gin.HandlerFunc) *Resource {
	res.middleware = append(res.middleware, middleware...)
	return res
}

func (res *Resource) Handle(method, path string, handlers ...gin.HandlerFunc) *Resource {
	res.routes = append(res.routes, route{method, path, handlers})
	return res
}

func (res *Resource) GET(path string, h ...gin.HandlerFunc) *Resource {
	return res.Handle(http.MethodGet, path, h...)
}

func (res *Resource) POST(path string, h ...gin.HandlerFunc) *Resource {
	return res.Handle(http.MethodPost, path, h...)
}

func (res *Resource) PUT(path string, h ...gin.HandlerFunc) *Resource {
	return res.Handle(http.MethodPut, path, h...)
}

// Nest returns a child resource mounted below this one
func (res *Resource) Nest(prefix string) *Resource {
	child := NewResource(prefix)
	res.children = append(res.children, child)
	return child
}

func (res *Resource) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(res.prefix, res.middleware...)
	for _, rt := range res.routes {
		group.Handle(rt.method, rt.path, rt.handlers...)
	}
	for _, child := range res.children {
		child.RegisterRoutes(group)
	}
}
