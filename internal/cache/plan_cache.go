package cache

import (
	"strconv"
	"time"

	plandomain "github.com/smallbiznis/inspectconnect/internal/plan/domain"
)

const defaultPlanTTL = 5 * time.Minute

const activePlansKey = "active"

// PlanCache keeps the active catalog hot for the subscription and plan read paths.
// Writers must call Invalidate after any catalog change.
type PlanCache interface {
	GetActive() ([]plandomain.Plan, bool)
	SetActive(plans []plandomain.Plan)
	GetByUserType(userType int) (plandomain.Plan, bool)
	SetByUserType(userType int, plan plandomain.Plan)
	Invalidate()
}

type planCache struct {
	lists  Cache[string, []plandomain.Plan]
	byType Cache[string, plandomain.Plan]
	ttl    time.Duration
}

func NewPlanCache() PlanCache {
	return &planCache{
		lists:  NewTTLCache[string, []plandomain.Plan](),
		byType: NewTTLCache[string, plandomain.Plan](),
		ttl:    defaultPlanTTL,
	}
}

func (c *planCache) GetActive() ([]plandomain.Plan, bool) {
	plans, ok := c.lists.Get(activePlansKey)
	if !ok {
		return nil, false
	}
	out := make([]plandomain.Plan, len(plans))
	copy(out, plans)
	return out, true
}

func (c *planCache) SetActive(plans []plandomain.Plan) {
	if len(plans) == 0 {
		return
	}
	stored := make([]plandomain.Plan, len(plans))
	copy(stored, plans)
	c.lists.Set(activePlansKey, stored, c.ttl)
}

func (c *planCache) GetByUserType(userType int) (plandomain.Plan, bool) {
	return c.byType.Get(strconv.Itoa(userType))
}

func (c *planCache) SetByUserType(userType int, plan plandomain.Plan) {
	if plan.ID == 0 {
		return
	}
	c.byType.Set(strconv.Itoa(userType), plan, c.ttl)
}

func (c *planCache) Invalidate() {
	c.lists.Purge()
	c.byType.Purge()
}
