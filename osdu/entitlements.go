package osdu

import (
	"context"
	"encoding/json"

	"github.com/c360/osdugate/config"
	"github.com/c360/osdugate/errors"
	"github.com/c360/osdugate/osdu/querybuilder"
)

// MyGroups lists the entitlement groups of the calling identity
func (c *Client) MyGroups(ctx context.Context, partition string) ([]Group, error) {
	payload, err := c.executeTemplate(ctx, config.ServiceEntitlements, partition,
		querybuilder.OpMyGroups, nil)
	if err != nil {
		return nil, err
	}

	var groups []Group
	if err := json.Unmarshal(payload, &groups); err != nil {
		return nil, errors.WrapInvalid(err, "Client", "MyGroups", "decode groups")
	}
	return groups, nil
}

// GroupMembers lists members of an entitlement group
func (c *Client) GroupMembers(ctx context.Context, partition, groupEmail string) ([]Member, error) {
	if groupEmail == "" {
		return nil, errors.WrapInvalid(errors.ErrQueryInvalid,
			"Client", "GroupMembers", "group email is required")
	}

	payload, err := c.executeTemplate(ctx, config.ServiceEntitlements, partition,
		querybuilder.OpGroupMembers, map[string]any{"groupEmail": groupEmail})
	if err != nil {
		return nil, err
	}

	var members []Member
	if err := json.Unmarshal(payload, &members); err != nil {
		return nil, errors.WrapInvalid(err, "Client", "GroupMembers", "decode members")
	}
	return members, nil
}

// AddMember adds a member to an entitlement group
func (c *Client) AddMember(ctx context.Context, partition, groupEmail, email, role string) (*Member, error) {
	if groupEmail == "" || email == "" {
		return nil, errors.WrapInvalid(errors.ErrQueryInvalid,
			"Client", "AddMember", "group email and member email are required")
	}
	if role == "" {
		role = "MEMBER"
	}

	payload, err := c.executeTemplate(ctx, config.ServiceEntitlements, partition,
		querybuilder.OpAddMember, map[string]any{
			"groupEmail": groupEmail,
			"email":      email,
			"role":       role,
		})
	if err != nil {
		return nil, err
	}

	var member Member
	if err := json.Unmarshal(payload, &member); err != nil {
		return nil, errors.WrapInvalid(err, "Client", "AddMember", "decode member")
	}
	return &member, nil
}

// RemoveMember removes a member from an entitlement group
func (c *Client) RemoveMember(ctx context.Context, partition, groupEmail, email string) error {
	if groupEmail == "" || email == "" {
		return errors.WrapInvalid(errors.ErrQueryInvalid,
			"Client", "RemoveMember", "group email and member email are required")
	}

	_, err := c.executeTemplate(ctx, config.ServiceEntitlements, partition,
		querybuilder.OpRemoveMember, map[string]any{
			"groupEmail": groupEmail,
			"email":      email,
		})
	return err
}
