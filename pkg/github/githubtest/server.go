// Package githubtest provides an in-memory GitHub stand-in for tests. It
// serves the subset of the REST, GraphQL, raw content and release download
// endpoints antikit uses.
package githubtest

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/gorilla/mux"
)

// Repo is a repository served by the fake.
type Repo struct {
	Owner  string
	Name   string
	Branch string
	Files  map[string]string
	Empty  bool
}

// Asset is a downloadable release asset.
type Asset struct {
	Name string
	Data []byte
}

// Release is a published release.
type Release struct {
	Tag    string
	Assets []Asset
}

// Server is a fake GitHub.
type Server struct {
	*httptest.Server

	mu              sync.Mutex
	repos           map[string]*Repo
	releases        map[string][]Release
	rateLimited     bool
	graphQLDisabled bool
	hits            map[string]int
}

// NewServer starts a fake GitHub. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		repos:    map[string]*Repo{},
		releases: map[string][]Release{},
		hits:     map[string]int{},
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/repos/{owner}/{repo}/contents/{path:.*}", s.handleContents).Methods(http.MethodGet)
	api.HandleFunc("/repos/{owner}/{repo}/contents", s.handleContents).Methods(http.MethodGet)
	api.HandleFunc("/repos/{owner}/{repo}/git/trees/{ref}", s.handleTree).Methods(http.MethodGet)
	api.HandleFunc("/repos/{owner}/{repo}/git/blobs/{sha}", s.handleBlob).Methods(http.MethodGet)
	api.HandleFunc("/repos/{owner}/{repo}/releases/latest", s.handleLatestRelease).Methods(http.MethodGet)
	api.HandleFunc("/repos/{owner}/{repo}/releases/tags/{tag}", s.handleReleaseByTag).Methods(http.MethodGet)
	r.HandleFunc("/graphql", s.handleGraphQL).Methods(http.MethodPost)
	r.HandleFunc("/raw/{owner}/{repo}/{branch}/{path:.*}", s.handleRaw).Methods(http.MethodGet)
	r.HandleFunc("/downloads/{owner}/{repo}/{tag}/{name}", s.handleDownload).Methods(http.MethodGet)

	s.Server = httptest.NewServer(r)
	return s
}

// APIURL is the REST base URL.
func (s *Server) APIURL() string { return s.URL + "/api" }

// GraphQLURL is the GraphQL endpoint.
func (s *Server) GraphQLURL() string { return s.URL + "/graphql" }

// RawURL is the raw content base URL.
func (s *Server) RawURL() string { return s.URL + "/raw" }

// AddRepo serves files (path to content) for owner/name at branch.
func (s *Server) AddRepo(owner, name, branch string, files map[string]string) *Repo {
	s.mu.Lock()
	defer s.mu.Unlock()
	repo := &Repo{Owner: owner, Name: name, Branch: branch, Files: files}
	s.repos[owner+"/"+name] = repo
	return repo
}

// AddEmptyRepo serves a repository without commits.
func (s *Server) AddEmptyRepo(owner, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repos[owner+"/"+name] = &Repo{Owner: owner, Name: name, Empty: true}
}

// SetFile adds or replaces a file in an existing repository.
func (s *Server) SetFile(owner, name, filePath, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if repo, ok := s.repos[owner+"/"+name]; ok {
		repo.Files[filePath] = content
	}
}

// AddRelease publishes a release. The last added release is the latest.
func (s *Server) AddRelease(owner, name string, release Release) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := owner + "/" + name
	s.releases[key] = append(s.releases[key], release)
}

// SetRateLimited makes every REST call fail with a rate limit reply.
func (s *Server) SetRateLimited(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimited = v
}

// SetGraphQLDisabled makes GraphQL queries return an errors payload.
func (s *Server) SetGraphQLDisabled(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphQLDisabled = v
}

// Hits returns how many requests hit an endpoint kind: contents, tree, blob,
// graphql, raw, release or download.
func (s *Server) Hits(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[kind]
}

func (s *Server) record(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[kind]++
}

func (s *Server) lookup(r *http.Request) (*Repo, bool) {
	vars := mux.Vars(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	repo, ok := s.repos[vars["owner"]+"/"+vars["repo"]]
	return repo, ok
}

func (s *Server) isRateLimited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rateLimited
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

func rateLimit(w http.ResponseWriter) {
	w.Header().Set("X-RateLimit-Limit", "60")
	w.Header().Set("X-RateLimit-Remaining", "0")
	writeJSON(w, http.StatusForbidden, map[string]string{
		"message": "API rate limit exceeded for 127.0.0.1.",
	})
}

// SHA returns the blob id the fake assigns to a file path.
func SHA(filePath string) string {
	sum := sha1.Sum([]byte(filePath))
	return hex.EncodeToString(sum[:])
}

func (s *Server) refMatches(repo *Repo, ref string) bool {
	return ref == "" || ref == repo.Branch
}

// children returns the direct children of dir: file names and directory names.
func children(repo *Repo, dir string) (files, dirs []string) {
	dir = strings.Trim(dir, "/")
	seenDirs := map[string]bool{}
	for p := range repo.Files {
		rel := p
		if dir != "" {
			if !strings.HasPrefix(p, dir+"/") {
				continue
			}
			rel = strings.TrimPrefix(p, dir+"/")
		}
		if i := strings.Index(rel, "/"); i >= 0 {
			seenDirs[rel[:i]] = true
		} else {
			files = append(files, rel)
		}
	}
	for d := range seenDirs {
		dirs = append(dirs, d)
	}
	sort.Strings(files)
	sort.Strings(dirs)
	return files, dirs
}

func joinPath(dir, name string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func (s *Server) handleContents(w http.ResponseWriter, r *http.Request) {
	s.record("contents")
	if s.isRateLimited() {
		rateLimit(w)
		return
	}

	repo, ok := s.lookup(r)
	if !ok {
		notFound(w)
		return
	}
	if repo.Empty {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "This repository is empty."})
		return
	}
	if !s.refMatches(repo, r.URL.Query().Get("ref")) {
		notFound(w)
		return
	}

	p := strings.Trim(mux.Vars(r)["path"], "/")
	if content, ok := repo.Files[p]; ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"type":     "file",
			"name":     path.Base(p),
			"path":     p,
			"sha":      SHA(p),
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte(content)),
		})
		return
	}

	files, dirs := children(repo, p)
	if len(files) == 0 && len(dirs) == 0 {
		notFound(w)
		return
	}

	htmlBase := "https://github.com/" + repo.Owner + "/" + repo.Name + "/tree/" + repo.Branch + "/"
	var entries []map[string]any
	for _, d := range dirs {
		full := joinPath(p, d)
		entries = append(entries, map[string]any{
			"type": "dir", "name": d, "path": full, "html_url": htmlBase + full,
		})
	}
	for _, f := range files {
		full := joinPath(p, f)
		entries = append(entries, map[string]any{
			"type": "file", "name": f, "path": full, "sha": SHA(full), "html_url": htmlBase + full,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	s.record("tree")
	if s.isRateLimited() {
		rateLimit(w)
		return
	}

	repo, ok := s.lookup(r)
	if !ok || repo.Empty || !s.refMatches(repo, mux.Vars(r)["ref"]) {
		notFound(w)
		return
	}

	dirs := map[string]bool{}
	var entries []map[string]any
	paths := make([]string, 0, len(repo.Files))
	for p := range repo.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		for d := path.Dir(p); d != "." && !dirs[d]; d = path.Dir(d) {
			dirs[d] = true
			entries = append(entries, map[string]any{"path": d, "type": "tree", "mode": "040000", "sha": SHA(d + "/")})
		}
		entries = append(entries, map[string]any{"path": p, "type": "blob", "mode": "100644", "sha": SHA(p)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sha": SHA(repo.Branch), "tree": entries, "truncated": false})
}

func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	s.record("blob")
	repo, ok := s.lookup(r)
	if !ok {
		notFound(w)
		return
	}
	sha := mux.Vars(r)["sha"]
	for p, content := range repo.Files {
		if SHA(p) == sha {
			w.Header().Set("Content-Type", "application/vnd.github.raw")
			_, _ = w.Write([]byte(content))
			return
		}
	}
	notFound(w)
}

func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	s.record("raw")
	repo, ok := s.lookup(r)
	vars := mux.Vars(r)
	if !ok || repo.Empty || vars["branch"] != repo.Branch {
		http.Error(w, "404: Not Found", http.StatusNotFound)
		return
	}
	content, ok := repo.Files[strings.Trim(vars["path"], "/")]
	if !ok {
		http.Error(w, "404: Not Found", http.StatusNotFound)
		return
	}
	_, _ = w.Write([]byte(content))
}

type graphQLRequest struct {
	Query     string            `json:"query"`
	Variables map[string]string `json:"variables"`
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	s.record("graphql")
	if r.Header.Get("Authorization") == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "This endpoint requires you to be authenticated."})
		return
	}

	s.mu.Lock()
	disabled := s.graphQLDisabled
	s.mu.Unlock()
	if disabled {
		writeJSON(w, http.StatusOK, map[string]any{"errors": []map[string]string{{"message": "Something went wrong"}}})
		return
	}

	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return
	}

	s.mu.Lock()
	repo, ok := s.repos[req.Variables["owner"]+"/"+req.Variables["repo"]]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"data":   map[string]any{"repository": nil},
			"errors": []map[string]string{{"type": "NOT_FOUND", "message": "Could not resolve to a Repository"}},
		})
		return
	}

	branch, dir, _ := strings.Cut(req.Variables["expression"], ":")
	files, dirs := children(repo, dir)
	if repo.Empty || branch != repo.Branch || (len(files) == 0 && len(dirs) == 0) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"repository": map[string]any{"object": nil}}})
		return
	}

	var entries []map[string]any
	for _, d := range dirs {
		var file []map[string]any
		if text, ok := repo.Files[joinPath(joinPath(dir, d), "SKILL.md")]; ok {
			file = append(file, map[string]any{"object": map[string]any{"text": text}})
		}
		entries = append(entries, map[string]any{
			"name": d, "type": "tree", "object": map[string]any{"file": file},
		})
	}
	for _, f := range files {
		entries = append(entries, map[string]any{"name": f, "type": "blob", "object": map[string]any{}})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"repository": map[string]any{"object": map[string]any{"entries": entries}}},
	})
}

func (s *Server) releaseJSON(owner, repo string, rel Release) map[string]any {
	var assets []map[string]any
	for i, a := range rel.Assets {
		assets = append(assets, map[string]any{
			"id":                   i + 1,
			"name":                 a.Name,
			"size":                 len(a.Data),
			"browser_download_url": s.URL + "/downloads/" + owner + "/" + repo + "/" + rel.Tag + "/" + a.Name,
		})
	}
	return map[string]any{"tag_name": rel.Tag, "name": rel.Tag, "assets": assets}
}

func (s *Server) handleLatestRelease(w http.ResponseWriter, r *http.Request) {
	s.record("release")
	vars := mux.Vars(r)
	s.mu.Lock()
	list := s.releases[vars["owner"]+"/"+vars["repo"]]
	s.mu.Unlock()
	if len(list) == 0 {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, s.releaseJSON(vars["owner"], vars["repo"], list[len(list)-1]))
}

func (s *Server) handleReleaseByTag(w http.ResponseWriter, r *http.Request) {
	s.record("release")
	vars := mux.Vars(r)
	s.mu.Lock()
	list := s.releases[vars["owner"]+"/"+vars["repo"]]
	s.mu.Unlock()
	for _, rel := range list {
		if rel.Tag == vars["tag"] {
			writeJSON(w, http.StatusOK, s.releaseJSON(vars["owner"], vars["repo"], rel))
			return
		}
	}
	notFound(w)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.record("download")
	vars := mux.Vars(r)
	s.mu.Lock()
	list := s.releases[vars["owner"]+"/"+vars["repo"]]
	s.mu.Unlock()
	for _, rel := range list {
		if rel.Tag != vars["tag"] {
			continue
		}
		for _, a := range rel.Assets {
			if a.Name == vars["name"] {
				w.Header().Set("Content-Type", "application/octet-stream")
				_, _ = w.Write(a.Data)
				return
			}
		}
	}
	http.Error(w, "not found", http.StatusNotFound)
}
