package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow definitions and their ordered stages
			CREATE TABLE workflow_definitions (
				id UUID PRIMARY KEY,
				code VARCHAR(100) NOT NULL UNIQUE,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				is_active BOOLEAN NOT NULL DEFAULT true,
				requires_all_stages BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_definitions_active ON workflow_definitions(is_active);

			CREATE TABLE stage_definitions (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflow_definitions(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL DEFAULT '',
				stage_order INT NOT NULL CHECK (stage_order >= 1),
				approver_type VARCHAR(50) NOT NULL CHECK (approver_type IN ('specific_user', 'role', 'hierarchy')),
				user_id VARCHAR(255),
				role_id VARCHAR(255),
				organization_body VARCHAR(50) CHECK (organization_body IN ('unit', 'area', 'forum')),
				is_optional BOOLEAN NOT NULL DEFAULT false,
				auto_approve BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (workflow_id, stage_order)
			);

			CREATE INDEX idx_stage_definitions_workflow_id ON stage_definitions(workflow_id);
		`,
		2: `
			-- Approval requests and their stage executions
			CREATE TABLE approval_requests (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflow_definitions(id),
				entity_type VARCHAR(100) NOT NULL,
				entity_id VARCHAR(255) NOT NULL,
				forum_id VARCHAR(255),
				area_id VARCHAR(255),
				unit_id VARCHAR(255),
				requested_by VARCHAR(255) NOT NULL,
				requested_at TIMESTAMP WITH TIME ZONE NOT NULL,
				current_stage_order INT NOT NULL DEFAULT 1,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
				approved_by VARCHAR(255),
				approved_at TIMESTAMP WITH TIME ZONE,
				rejected_by VARCHAR(255),
				rejected_at TIMESTAMP WITH TIME ZONE,
				rejection_reason TEXT
			);

			CREATE INDEX idx_approval_requests_workflow_id ON approval_requests(workflow_id);
			CREATE INDEX idx_approval_requests_entity ON approval_requests(entity_type, entity_id);
			CREATE INDEX idx_approval_requests_status ON approval_requests(status);

			-- At most one pending request per entity
			CREATE UNIQUE INDEX idx_approval_requests_pending_entity
				ON approval_requests(entity_type, entity_id)
				WHERE status = 'pending';

			CREATE TABLE stage_executions (
				id UUID PRIMARY KEY,
				request_id UUID NOT NULL REFERENCES approval_requests(id),
				stage_id UUID NOT NULL REFERENCES stage_definitions(id),
				stage_order INT NOT NULL,
				assigned_approver_id VARCHAR(255),
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'approved', 'rejected', 'skipped')),
				reviewed_by VARCHAR(255),
				reviewed_at TIMESTAMP WITH TIME ZONE,
				decision VARCHAR(50) CHECK (decision IN ('approve', 'reject')),
				comments TEXT
			);

			CREATE INDEX idx_stage_executions_request_id ON stage_executions(request_id);
			CREATE INDEX idx_stage_executions_approver ON stage_executions(assigned_approver_id, status);
		`,
	}
}
