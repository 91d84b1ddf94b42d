// Package apitest provides an in-memory visitor-pass backend for tests.
package apitest

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/visitorpass/desk/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type failure struct {
	status  int
	message string
}

// Backend serves the REST endpoints the desk uses, backed by in-memory slices.
type Backend struct {
	mu       sync.Mutex
	passes   []models.Pass
	users    []models.User
	requests []string
	failures map[string]failure
	holds    map[string]chan struct{}
	nextID   int64
	server   *httptest.Server
}

// NewBackend starts a backend that is closed when t finishes.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		failures: make(map[string]failure),
		holds:    make(map[string]chan struct{}),
		nextID:   1000,
	}
	b.server = httptest.NewServer(b.router())
	t.Cleanup(b.server.Close)
	return b
}

// URL is the REST base URL, including the /api prefix.
func (b *Backend) URL() string {
	return b.server.URL + "/api"
}

// ServerURL is the bare server URL.
func (b *Backend) ServerURL() string {
	return b.server.URL
}

// AddPasses appends passes to the store.
func (b *Backend) AddPasses(passes ...models.Pass) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.passes = append(b.passes, passes...)
}

// AddUsers appends users to the store.
func (b *Backend) AddUsers(users ...models.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users = append(b.users, users...)
}

// Pass returns the stored pass with id.
func (b *Backend) Pass(id int64) (models.Pass, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.passes {
		if p.ID == id {
			return p, true
		}
	}
	return models.Pass{}, false
}

// Requests returns every request seen so far as "METHOD /path".
func (b *Backend) Requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

// Count returns how many requests matched method and path exactly.
func (b *Backend) Count(method, path string) int {
	want := method + " " + path
	n := 0
	for _, r := range b.Requests() {
		if r == want {
			n++
		}
	}
	return n
}

// Fail makes every following request to method and path answer status with message.
func (b *Backend) Fail(method, path string, status int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method+" "+path] = failure{status: status, message: message}
}

// Hold parks requests to method and path until the returned release func is called.
func (b *Backend) Hold(method, path string) (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.holds[method+" "+path] = ch
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.holds, method+" "+path)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Backend) router() *gin.Engine {
	r := gin.New()
	r.Use(b.record)
	t := r.Group("/api/tenants/:tenant")
	t.POST("/passes", b.createPass)
	t.GET("/passes", b.listPasses)
	t.GET("/passes/history", b.listPasses)
	t.POST("/approvals/:id/approve", b.transition(models.PassPending, models.PassApproved, "Pass must be pending to approve."))
	t.POST("/approvals/:id/reject", b.reject)
	t.GET("/admin/users", b.listUsers)
	t.POST("/admin/users", b.createUser)
	t.PUT("/admin/users/:id/status", b.setUserStatus)
	t.GET("/admin/dashboard", b.adminDashboard)
	t.GET("/security/dashboard/today", b.securityDashboard)
	t.GET("/security/passes/search", b.search)
	t.POST("/security/check-in/:id", b.transition(models.PassApproved, models.PassCheckedIn, "Pass must be approved before check-in."))
	t.POST("/security/check-out/:id", b.transition(models.PassCheckedIn, models.PassCheckedOut, "Pass must be checked-in before it can be checked-out."))
	return r
}

func (b *Backend) record(c *gin.Context) {
	key := c.Request.Method + " " + c.Request.URL.Path
	b.mu.Lock()
	b.requests = append(b.requests, key)
	f, failing := b.failures[key]
	hold := b.holds[key]
	b.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-c.Request.Context().Done():
			c.Abort()
			return
		}
	}
	if failing {
		c.AbortWithStatusJSON(f.status, gin.H{"message": f.message})
		return
	}
	c.Next()
}

func tenantOf(c *gin.Context) int64 {
	id, _ := strconv.ParseInt(c.Param("tenant"), 10, 64)
	return id
}

func idOf(c *gin.Context) int64 {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	return id
}

func pageParams(c *gin.Context, prefix string, defSize int) (int, int) {
	page, err := strconv.Atoi(c.Query(prefix + "page"))
	if err != nil || page < 0 {
		page = 0
	}
	size, err := strconv.Atoi(c.Query(prefix + "size"))
	if err != nil || size < 1 {
		size = defSize
	}
	return page, size
}

func slice[T any](items []T, page, size int) models.Page[T] {
	total := len(items)
	from := page * size
	if from > total {
		from = total
	}
	to := from + size
	if to > total {
		to = total
	}
	content := append([]T{}, items[from:to]...)
	return models.Page[T]{
		Content:       content,
		Number:        page,
		Size:          size,
		TotalElements: int64(total),
		TotalPages:    (total + size - 1) / size,
	}
}

func (b *Backend) tenantPasses(tenant int64, keep func(models.Pass) bool) []models.Pass {
	var out []models.Pass
	for _, p := range b.passes {
		if p.TenantID == tenant && (keep == nil || keep(p)) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Backend) createPass(c *gin.Context) {
	var req models.CreatePassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	b.mu.Lock()
	b.nextID++
	p := models.Pass{
		ID:            b.nextID,
		TenantID:      tenantOf(c),
		VisitorName:   req.VisitorName,
		VisitorEmail:  req.VisitorEmail,
		VisitorPhone:  req.VisitorPhone,
		Purpose:       req.Purpose,
		Status:        models.PassPending,
		PassCode:      strings.ToUpper(strconv.FormatInt(b.nextID, 36)) + "CODE",
		VisitDateTime: req.VisitDateTime,
	}
	b.passes = append(b.passes, p)
	b.mu.Unlock()
	c.JSON(http.StatusCreated, p)
}

func (b *Backend) listPasses(c *gin.Context) {
	page, size := pageParams(c, "", 10)
	b.mu.Lock()
	out := slice(b.tenantPasses(tenantOf(c), nil), page, size)
	b.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

func (b *Backend) transition(from, to models.PassStatus, msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i := range b.passes {
			p := &b.passes[i]
			if p.ID != idOf(c) || p.TenantID != tenantOf(c) {
				continue
			}
			if p.Status != from {
				c.JSON(http.StatusBadRequest, gin.H{"message": msg})
				return
			}
			p.Status = to
			c.JSON(http.StatusOK, *p)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"message": "VisitorPass not found with id : " + c.Param("id")})
	}
}

func (b *Backend) reject(c *gin.Context) {
	var req models.RejectPassRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Reason) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "reason is required"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.passes {
		p := &b.passes[i]
		if p.ID == idOf(c) && p.TenantID == tenantOf(c) && p.Status == models.PassPending {
			p.Status = models.PassRejected
			p.RejectionReason = req.Reason
			c.JSON(http.StatusOK, *p)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "VisitorPass not found with id : " + c.Param("id")})
}

func (b *Backend) tenantUsers(tenant int64) []models.User {
	var out []models.User
	for _, u := range b.users {
		if u.TenantID == tenant {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (b *Backend) listUsers(c *gin.Context) {
	page, size := pageParams(c, "", 10)
	b.mu.Lock()
	out := slice(b.tenantUsers(tenantOf(c)), page, size)
	b.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

func (b *Backend) createUser(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.users {
		if strings.EqualFold(u.Email, req.Email) {
			c.JSON(http.StatusConflict, gin.H{"message": "Email already in use"})
			return
		}
	}
	b.nextID++
	u := models.User{
		ID:         b.nextID,
		Name:       req.Name,
		Email:      req.Email,
		Role:       req.Role,
		IsActive:   true,
		TenantID:   tenantOf(c),
		Contact:    req.Contact,
		Department: req.Department,
	}
	b.users = append(b.users, u)
	c.JSON(http.StatusCreated, u)
}

func (b *Backend) setUserStatus(c *gin.Context) {
	var req models.UpdateUserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.users {
		u := &b.users[i]
		if u.ID == idOf(c) && u.TenantID == tenantOf(c) {
			u.IsActive = req.IsActive
			c.JSON(http.StatusOK, *u)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
}

func (b *Backend) adminDashboard(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	counts := make(map[models.PassStatus]int)
	for _, p := range b.tenantPasses(tenantOf(c), nil) {
		counts[p.Status]++
	}
	c.JSON(http.StatusOK, gin.H{
		"totalUsers":    len(b.tenantUsers(tenantOf(c))),
		"pendingPasses": counts[models.PassPending],
		"checkedIn":     counts[models.PassCheckedIn],
	})
}

func toInfo(passes []models.Pass) []models.SecurityPassInfo {
	out := make([]models.SecurityPassInfo, 0, len(passes))
	for _, p := range passes {
		out = append(out, models.SecurityPassInfo{
			ID:            p.ID,
			VisitorName:   p.VisitorName,
			PassCode:      p.PassCode,
			Status:        p.Status,
			VisitDateTime: p.VisitDateTime,
			EmployeeName:  p.CreatedByEmployeeName,
		})
	}
	return out
}

func (b *Backend) securityDashboard(c *gin.Context) {
	approvedPage, approvedSize := pageParams(c, "approved_", 5)
	onSitePage, onSiteSize := pageParams(c, "onSite_", 5)
	tenant := tenantOf(c)
	b.mu.Lock()
	approved := toInfo(b.tenantPasses(tenant, func(p models.Pass) bool { return p.Status == models.PassApproved }))
	onSite := toInfo(b.tenantPasses(tenant, func(p models.Pass) bool { return p.Status == models.PassCheckedIn }))
	b.mu.Unlock()
	c.JSON(http.StatusOK, models.SecurityDashboard{
		ApprovedForEntry: slice(approved, approvedPage, approvedSize),
		CurrentlyOnSite:  slice(onSite, onSitePage, onSiteSize),
	})
}

func (b *Backend) search(c *gin.Context) {
	code := c.Query("passCode")
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.tenantPasses(tenantOf(c), nil) {
		if p.PassCode == code {
			c.JSON(http.StatusOK, p)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "VisitorPass not found with passCode : " + code})
}

// SeedPasses adds n passes for tenant with ids start, start+1, ... in status.
func (b *Backend) SeedPasses(tenant int64, start int64, n int, status models.PassStatus) {
	passes := make([]models.Pass, 0, n)
	for i := 0; i < n; i++ {
		id := start + int64(i)
		passes = append(passes, models.Pass{
			ID:          id,
			TenantID:    tenant,
			VisitorName: "Visitor " + strconv.FormatInt(id, 10),
			Status:      status,
			PassCode:    "CODE" + strconv.FormatInt(id, 10),
		})
	}
	b.AddPasses(passes...)
}
