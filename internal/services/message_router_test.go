package services

import (
	"context"
	"errors"
	"testing"

	"coachhub/internal/models"
	"coachhub/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type MessageRouterTestSuite struct {
	suite.Suite
	profiles *MockProfileRepository
	router   MessageRouter
	tenantID uuid.UUID
	ctx      context.Context
}

func (suite *MessageRouterTestSuite) SetupTest() {
	suite.profiles = &MockProfileRepository{}
	suite.profiles.Test(suite.T())
	suite.router = NewMessageRouter(suite.profiles, zap.NewNop())
	suite.tenantID = uuid.New()
	suite.ctx = context.Background()
}

func (suite *MessageRouterTestSuite) TearDownTest() {
	suite.profiles.AssertExpectations(suite.T())
}

func TestMessageRouterTestSuite(t *testing.T) {
	suite.Run(t, new(MessageRouterTestSuite))
}

func (suite *MessageRouterTestSuite) client(assigned *uuid.UUID) *models.Profile {
	tenantID := suite.tenantID
	return &models.Profile{ID: uuid.New(), TenantID: &tenantID, Role: models.RoleClient, AssignedCoachID: assigned}
}

func (suite *MessageRouterTestSuite) TestAssignedCoachWinsOverOtherCoaches() {
	assigned := uuid.New()
	sender := suite.client(&assigned)
	tenantID := suite.tenantID
	suite.profiles.On("GetByID", suite.ctx, assigned).
		Return(&models.Profile{ID: assigned, TenantID: &tenantID, Role: models.RoleCoach}, nil).Times(3)

	for i := 0; i < 3; i++ {
		got, err := suite.router.RouteOutbound(suite.ctx, sender, suite.tenantID)
		suite.Require().NoError(err)
		suite.Equal(assigned, got)
	}
	suite.profiles.AssertNotCalled(suite.T(), "FirstCoach", mock.Anything, mock.Anything)
	suite.profiles.AssertNotCalled(suite.T(), "FirstStaff", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *MessageRouterTestSuite) TestAssignedCoachOfAnotherTenantFallsThrough() {
	assigned := uuid.New()
	otherTenant := uuid.New()
	sender := suite.client(&assigned)
	local := &models.Profile{ID: uuid.New(), Role: models.RoleCoach}
	suite.profiles.On("GetByID", suite.ctx, assigned).
		Return(&models.Profile{ID: assigned, TenantID: &otherTenant, Role: models.RoleCoach}, nil).Once()
	suite.profiles.On("FirstCoach", suite.ctx, suite.tenantID).Return(local, nil).Once()

	got, err := suite.router.RouteOutbound(suite.ctx, sender, suite.tenantID)
	suite.Require().NoError(err)
	suite.Equal(local.ID, got)
}

func (suite *MessageRouterTestSuite) TestDeletedAssignedCoachFallsThrough() {
	assigned := uuid.New()
	sender := suite.client(&assigned)
	local := &models.Profile{ID: uuid.New(), Role: models.RoleCoach}
	suite.profiles.On("GetByID", suite.ctx, assigned).Return(nil, repositories.ErrNotFound).Once()
	suite.profiles.On("FirstCoach", suite.ctx, suite.tenantID).Return(local, nil).Once()

	got, err := suite.router.RouteOutbound(suite.ctx, sender, suite.tenantID)
	suite.Require().NoError(err)
	suite.Equal(local.ID, got)
}

func (suite *MessageRouterTestSuite) TestUnassignedClientGetsFirstCoachConsistently() {
	c1 := &models.Profile{ID: uuid.New(), Role: models.RoleCoach}
	sender := suite.client(nil)
	suite.profiles.On("FirstCoach", suite.ctx, suite.tenantID).Return(c1, nil).Times(3)

	for i := 0; i < 3; i++ {
		got, err := suite.router.RouteOutbound(suite.ctx, sender, suite.tenantID)
		suite.Require().NoError(err)
		suite.Equal(c1.ID, got)
	}
}

func (suite *MessageRouterTestSuite) TestFallsBackToStaff() {
	admin := &models.Profile{ID: uuid.New(), Role: models.RoleAdmin}
	sender := suite.client(nil)
	suite.profiles.On("FirstCoach", suite.ctx, suite.tenantID).Return(nil, repositories.ErrNotFound).Once()
	suite.profiles.On("FirstStaff", suite.ctx, suite.tenantID, sender.ID).Return(admin, nil).Once()

	got, err := suite.router.RouteOutbound(suite.ctx, sender, suite.tenantID)
	suite.Require().NoError(err)
	suite.Equal(admin.ID, got)
}

func (suite *MessageRouterTestSuite) TestNoCoachAvailable() {
	sender := suite.client(nil)
	suite.profiles.On("FirstCoach", suite.ctx, suite.tenantID).Return(nil, repositories.ErrNotFound).Once()
	suite.profiles.On("FirstStaff", suite.ctx, suite.tenantID, sender.ID).Return(nil, repositories.ErrNotFound).Once()

	got, err := suite.router.RouteOutbound(suite.ctx, sender, suite.tenantID)
	suite.ErrorIs(err, ErrNoCoachAvailable)
	suite.Equal(uuid.Nil, got)
	suite.NotEqual(sender.ID, got)
}

func (suite *MessageRouterTestSuite) TestNeverRoutesToSender() {
	sender := suite.client(nil)
	sender.AssignedCoachID = &sender.ID
	self := &models.Profile{ID: sender.ID, Role: models.RoleClient}
	suite.profiles.On("FirstCoach", suite.ctx, suite.tenantID).Return(self, nil).Once()
	suite.profiles.On("FirstStaff", suite.ctx, suite.tenantID, sender.ID).Return(nil, repositories.ErrNotFound).Once()

	_, err := suite.router.RouteOutbound(suite.ctx, sender, suite.tenantID)
	suite.ErrorIs(err, ErrNoCoachAvailable)
}

func (suite *MessageRouterTestSuite) TestStoreErrorIsNotNoCoach() {
	sender := suite.client(nil)
	suite.profiles.On("FirstCoach", suite.ctx, suite.tenantID).Return(nil, errors.New("db down")).Once()

	_, err := suite.router.RouteOutbound(suite.ctx, sender, suite.tenantID)
	suite.Error(err)
	suite.NotErrorIs(err, ErrNoCoachAvailable)
}
