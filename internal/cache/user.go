package cache

import (
	"encoding/json"
	"fmt"
)

func (c *Cache) userCreate(raw json.RawMessage) (any, error) {
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	if _, exists := c.users[u.ID]; exists || u.ID == c.self.ID {
		return c.userUpdate(raw)
	}
	c.storeUser(u)
	return u.clone(), nil
}

func (c *Cache) userUpdate(raw json.RawMessage) (any, error) {
	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	if fieldID(fields, "id") == 0 {
		return nil, nil
	}
	return c.mergeUser(fields)
}

func (c *Cache) userDelete(raw json.RawMessage) (any, error) {
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	if u.ID == c.self.ID {
		return nil, ErrDeleteSelf
	}
	old, ok := c.users[u.ID]
	if !ok {
		return nil, nil
	}
	delete(c.users, u.ID)
	return old.clone(), nil
}
