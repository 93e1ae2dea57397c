package review

// SeedDocument returns the bundled sample document served when the backing
// store is unreachable. Content and highlight offsets come from the demo
// dataset the frontend was built against, so an offline run still exercises
// overlapping-highlight rendering and threaded commentary.
func SeedDocument() Document {
	return Document{
		Title:   "Technical Design Document (TDD): Creator Connect",
		Content: seedContent,
		Highlights: []Highlight{
			{
				ID:    "highlight-1",
				Spans: []Span{{Start: 655, End: 791}},
				Reason: "The mentorship flow has no age verification or parental consent " +
					"safeguards before opening a direct channel to a minor.",
				ClarificationQuestion: "How will mentor eligibility rules prevent contact with underage accounts?",
				Comments: []Comment{
					{
						ID:        "comment-1",
						Author:    FallbackAuthor,
						Timestamp: "2 hours ago",
						Content: "The proposed Creator Connect feature lacks critical safeguards to prevent predatory interactions with minors. " +
							"Specifically, there are no explicit age verification mechanisms, parental consent requirements, or robust off-platform " +
							"communication prevention strategies that would block a malicious actor from exploiting the mentorship feature to groom a vulnerable minor.",
						Kind: KindSystem,
					},
				},
			},
			{
				ID:    "highlight-2",
				Spans: []Span{{Start: 1007, End: 1056}},
				Reason: "Profile data is read for eligibility checks without an explicit " +
					"consent step.",
				ClarificationQuestion: "Is user consent collected before the profile lookup?",
				Comments: []Comment{
					{
						ID:        "comment-2",
						Author:    FallbackAuthor,
						Timestamp: "1 hour ago",
						Content: "🚨 Privacy Law Alert: Accessing user profile data for mentorship eligibility may require explicit consent under GDPR (EU) " +
							"and CCPA (California). Recommend implementing consent flow before profile access.",
						Kind: KindSystem,
					},
					{
						ID:        "comment-3",
						Author:    "Sarah Kim",
						Timestamp: "30 minutes ago",
						Content:   "Good catch! We should add a consent checkbox in the mentorship request flow. @john can you update the UX flow?",
						Kind:      KindUser,
					},
				},
			},
		},
	}
}

const seedContent = `
Document ID: TDD-2025-61C Title: TDD: Creator Connect Service (V1) Author: Kenji
Tanaka (Senior Software Engineer) Reviewers: Engineering Team, Security Team Related
PRD: PRD-2025-48B

1. Overview & Architecture

This document details the backend implementation for the Creator Connect feature. We will
introduce a new microservice, creator-connect-service, to orchestrate the business
logic of mentorship connections, acting as an intermediary between the user-facing client
and existing platform services. The flow is as follows: A request from an established
creator's client hits the new service. The service validates mentor eligibility against the
Spanner rule engine, checks for existing connections, and then calls the
direct-messaging-service to create the initial request message.

2. Service Dependencies

• user-profile-service: To fetch follower counts, account age, and verification
status.
• direct-messaging-service: To create and manage the communication channel.
• Spanner (Rule Engine): To host and execute the mentor eligibility rules.
• CDS (Compliance Detection System): For logging and retroactive analysis of
interactions.

3. New Service: creator-connect-service

Language: Go
Responsibilities:
◦ Expose endpoints for creating, accepting, and declining mentorship requests.
◦ Contain all business logic for eligibility and connection state management.
◦ Log all state changes and interactions to the CDS for analysis.

4. API Endpoints

Endpoint: POST /v1/mentorship/request

Description: Initiates a mentorship request from an established creator to an
aspiring creator.

Request Body:
JSON
{
  "mentor_id": "string",
}
`
