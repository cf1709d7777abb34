package service

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/Aadiprofessional/edusmart-server/internal/model"
	"github.com/Aadiprofessional/edusmart-server/internal/model/dto"
	"github.com/Aadiprofessional/edusmart-server/internal/repository"
)

var (
	ErrPlanNotFound  = errors.New("subscription plan not found")
	ErrAddonNotFound = errors.New("addon plan not found")
	ErrInvalidPrice  = errors.New("price must be greater than zero")
)

// PlanService 套餐与加量包目录
type PlanService struct {
	planRepo  *repository.PlanRepository
	addonRepo *repository.AddonRepository
}

func NewPlanService(planRepo *repository.PlanRepository, addonRepo *repository.AddonRepository) *PlanService {
	return &PlanService{
		planRepo:  planRepo,
		addonRepo: addonRepo,
	}
}

// ListPlans 上架套餐，价格升序
func (s *PlanService) ListPlans() ([]*model.SubscriptionPlan, error) {
	return s.planRepo.ListActive()
}

// ListAddons 上架加量包，价格升序
func (s *PlanService) ListAddons() ([]*model.AddonPlan, error) {
	return s.addonRepo.ListActive()
}

func (s *PlanService) CreatePlan(req *dto.CreatePlanRequest) (*model.SubscriptionPlan, error) {
	if !req.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	plan := &model.SubscriptionPlan{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price.Round(2),
		Currency:      strings.ToUpper(req.Currency),
		DurationDays:  req.DurationDays,
		ResponseLimit: req.ResponseLimit,
		IsActive:      true,
	}
	if err := s.planRepo.Create(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *PlanService) CreateAddon(req *dto.CreateAddonRequest) (*model.AddonPlan, error) {
	if !req.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	addon := &model.AddonPlan{
		Name:                req.Name,
		Description:         req.Description,
		Price:               req.Price.Round(2),
		Currency:            strings.ToUpper(req.Currency),
		AdditionalResponses: req.AdditionalResponses,
		IsActive:            true,
	}
	if err := s.addonRepo.Create(addon); err != nil {
		return nil, err
	}
	return addon, nil
}

// RetirePlan 下架套餐，已有订阅不受影响
func (s *PlanService) RetirePlan(id int64) error {
	ok, err := s.planRepo.SetActive(id, false)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPlanNotFound
	}
	return nil
}

func (s *PlanService) RetireAddon(id int64) error {
	ok, err := s.addonRepo.SetActive(id, false)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAddonNotFound
	}
	return nil
}

// activePlan 购买时校验：存在且上架
func (s *PlanService) activePlan(id int64) (*model.SubscriptionPlan, error) {
	plan, err := s.planRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if !plan.IsActive {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

func (s *PlanService) activeAddon(id int64) (*model.AddonPlan, error) {
	addon, err := s.addonRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAddonNotFound
		}
		return nil, err
	}
	if !addon.IsActive {
		return nil, ErrAddonNotFound
	}
	return addon, nil
}
