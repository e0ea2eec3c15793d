package access

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mygain/portal-gateway/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSessionHolder_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRoleRepository)
	repo.On("GetByIdentityID", mock.Anything, "id-1").
		Return(models.NewRoleRecord("id-1", models.RoleEmployee, models.SubRoleSales), nil).Once()
	repo.On("GetByIdentityID", mock.Anything, "id-1").
		Return(models.NewRoleRecord("id-1", models.RoleEmployee, models.SubRoleAdmin), nil).Once()

	holder := NewSessionHolder(NewResolver(repo, nil, time.Second, zap.NewNop()), zap.NewNop())
	assert.Nil(t, holder.Current())
	assert.False(t, holder.HasPermission(models.ModuleERP))

	require.True(t, holder.Apply(ctx, AuthEvent{Type: EventSignedIn, Identity: testIdentity()}))
	assert.Equal(t, models.SubRoleSales, holder.Current().SubRole)
	assert.True(t, holder.HasPermission(models.ModuleCRM))
	assert.False(t, holder.HasPermission(models.ModuleUsers))

	require.True(t, holder.Apply(ctx, AuthEvent{Type: EventTokenRefreshed, Identity: testIdentity()}))
	assert.Equal(t, models.SubRoleAdmin, holder.Current().SubRole)
	assert.True(t, holder.HasPermission(models.ModuleUsers))

	require.True(t, holder.Apply(ctx, AuthEvent{Type: EventSignedOut}))
	assert.Nil(t, holder.Current())
	assert.False(t, holder.HasPermission(models.ModuleERP))
}

func TestSessionHolder_StaleRebuildIsDiscarded(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})

	repo := new(MockRoleRepository)
	repo.On("GetByIdentityID", mock.Anything, "id-1").
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(models.NewRoleRecord("id-1", models.RoleEmployee, models.SubRoleAdmin), nil)

	holder := NewSessionHolder(NewResolver(repo, nil, time.Second, zap.NewNop()), zap.NewNop())

	var wg sync.WaitGroup
	var applied bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		applied = holder.Apply(ctx, AuthEvent{Type: EventSignedIn, Identity: testIdentity()})
	}()

	<-entered
	require.True(t, holder.Apply(ctx, AuthEvent{Type: EventSignedOut}))
	close(release)
	wg.Wait()

	assert.False(t, applied)
	assert.Nil(t, holder.Current())
}

func TestSessionHolder_ConcurrentReadersSeeWholeSessions(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRoleRepository)
	repo.On("GetByIdentityID", mock.Anything, "id-1").
		Return(models.NewRoleRecord("id-1", models.RoleCustomer, models.SubRoleAgents), nil)

	holder := NewSessionHolder(NewResolver(repo, nil, time.Second, zap.NewNop()), zap.NewNop())

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if s := holder.Current(); s != nil {
					assert.Equal(t, models.RoleCustomer, s.Role)
					assert.Equal(t, models.SubRoleAgents, s.SubRole)
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		holder.Apply(ctx, AuthEvent{Type: EventSignedIn, Identity: testIdentity()})
		holder.Apply(ctx, AuthEvent{Type: EventSignedOut})
	}
	close(stop)
	wg.Wait()
}
