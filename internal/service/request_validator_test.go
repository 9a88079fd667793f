package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docaccess-api/internal/models"
)

func TestRequestValidatorAcceptsExampleSubmission(t *testing.T) {
	v := NewRequestValidator(nil)

	draft, err := v.Validate([]byte(`{
		"document_id": "2025-0001",
		"userType": "guest",
		"requester": {"email": "a@gmail.com", "country": "PH"},
		"chaptersRequested": ["1", "2", 2, " 3 ", "1"],
		"purpose": "research study"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "2025-0001", draft.DocumentID)
	assert.Equal(t, models.UserTypeGuest, draft.UserType)
	assert.Equal(t, "a@gmail.com", draft.Requester.Email)
	assert.Equal(t, "PH", draft.Requester.Country)
	assert.Equal(t, []string{"1", "2", "3"}, draft.ChaptersRequested)
}

func TestRequestValidatorAcceptsLegacyDocIDAndGroups(t *testing.T) {
	v := NewRequestValidator(nil)

	draft, err := v.Validate([]byte(`{
		"docId": 42,
		"userType": "group",
		"requester": {"email": "lead@uni.edu", "group_id": 7, "leader_name": "Lead"},
		"purpose": "thesis"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "42", draft.DocumentID)
	assert.Equal(t, "7", draft.Requester.GroupID)
	assert.Empty(t, draft.ChaptersRequested)

	preferred, err := v.Validate([]byte(`{"document_id":"a","docId":"b","userType":"student","requester":{"email":"s@uni.edu"},"purpose":"p"}`))
	require.NoError(t, err)
	assert.Equal(t, "a", preferred.DocumentID)
}

func TestRequestValidatorRuleOrder(t *testing.T) {
	cases := []struct {
		name string
		body string
		rule ValidationRule
	}{
		{"not json", `[1,2]`, RulePayload},
		{"missing purpose", `{"document_id":"d","userType":"guest","requester":{"email":"a@b.co"}}`, RuleRequiredFields},
		{"requester scalar", `{"document_id":"d","userType":"guest","requester":"a@b.co","purpose":"p"}`, RuleRequiredFields},
		{"missing everything but bad email", `{"requester":{"email":"nope"}}`, RuleRequiredFields},
		{"invalid email", `{"document_id":"d","userType":"guest","requester":{"email":"not-an-email"},"purpose":"p"}`, RuleRequesterEmail},
		{"email not string", `{"document_id":"d","userType":"guest","requester":{"email":12},"purpose":"p"}`, RuleRequesterEmail},
		{"bad email wins over bad type", `{"document_id":"d","userType":"alien","requester":{"email":"x"},"purpose":"p"}`, RuleRequesterEmail},
		{"unknown user type", `{"document_id":"d","userType":"alien","requester":{"email":"a@b.co"},"purpose":"p"}`, RuleUserType},
		{"chapters scalar", `{"document_id":"d","userType":"guest","requester":{"email":"a@b.co"},"purpose":"p","chaptersRequested":"1"}`, RuleChaptersSequence},
		{"chapters object", `{"document_id":"d","userType":"guest","requester":{"email":"a@b.co"},"purpose":"p","chaptersRequested":{"a":1}}`, RuleChaptersSequence},
		{"chapters nested", `{"document_id":"d","userType":"guest","requester":{"email":"a@b.co"},"purpose":"p","chaptersRequested":[["1"]]}`, RuleChaptersSequence},
	}

	v := NewRequestValidator(nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			draft, err := v.Validate([]byte(tc.body))
			require.Error(t, err)
			assert.Nil(t, draft)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.rule, verr.Rule)
		})
	}
}

func TestNormalizeChapters(t *testing.T) {
	assert.Equal(t, []string{"2", "1"}, NormalizeChapters([]string{"2", " ", "1", "2 "}))
	assert.Empty(t, NormalizeChapters(nil))
}
