package engine_test

const testManifest = `{
  "version": "test",
  "actions": {
    "test.probe": { "provider": "adb", "command": "probe" },
    "test.flaky": { "provider": "adb", "command": "flaky" },
    "test.optional": { "provider": "adb", "command": "optional" },
    "test.final": { "provider": "adb", "command": "final" },
    "test.prepare": { "provider": "adb", "command": "prepare" },
    "test.apply": { "provider": "adb", "command": "apply" },
    "test.commit": { "provider": "adb", "command": "commit" },
    "test.undo_prepare": { "provider": "adb", "command": "undo-prepare" },
    "test.undo_apply": { "provider": "adb", "command": "undo-apply" },
    "test.cleanup": { "provider": "adb", "command": "cleanup" },
    "test.echo": {
      "provider": "adb", "command": "echo", "args": ["{deviceModel}", "{serial}"]
    },
    "test.flash": {
      "provider": "fastboot", "command": "flash",
      "args": ["{partition}", "{image}"], "destructive": true
    }
  },
  "workflows": [
    {
      "id": "rollback-flow", "name": "Rollback Flow", "version": "1",
      "category": "test", "rollbackSupported": true,
      "steps": [
        {
          "id": "prepare", "name": "Prepare", "actionId": "test.prepare",
          "actionType": "command", "rollbackStepId": "undo_prepare"
        },
        {
          "id": "apply", "name": "Apply", "actionId": "test.apply",
          "actionType": "command", "rollbackStepId": "undo_apply"
        },
        {
          "id": "commit", "name": "Commit", "actionId": "test.commit",
          "actionType": "command"
        }
      ],
      "rollbackSteps": [
        {
          "id": "undo_prepare", "name": "Undo Prepare",
          "actionId": "test.undo_prepare", "actionType": "command"
        },
        {
          "id": "undo_apply", "name": "Undo Apply",
          "actionId": "test.undo_apply", "actionType": "command"
        }
      ]
    },
    {
      "id": "cleanup-flow", "name": "Cleanup Flow", "version": "1",
      "category": "test", "rollbackSupported": true,
      "steps": [
        {
          "id": "prepare", "name": "Prepare", "actionId": "test.prepare",
          "actionType": "command"
        },
        {
          "id": "final", "name": "Final", "actionId": "test.final",
          "actionType": "command"
        }
      ],
      "rollbackSteps": [
        {
          "id": "cleanup", "name": "Cleanup", "actionId": "test.cleanup",
          "actionType": "command"
        },
        {
          "id": "note", "name": "Cleaned up", "actionId": "system.log",
          "actionType": "log"
        }
      ]
    },
    {
      "id": "retry-flow", "name": "Retry Flow", "version": "1",
      "category": "test",
      "steps": [
        {
          "id": "flaky", "name": "Flaky", "actionId": "test.flaky",
          "actionType": "check",
          "retry": { "max": 3, "backoffMs": [1, 1, 1] }
        }
      ]
    },
    {
      "id": "optional-flow", "name": "Optional Flow", "version": "1",
      "category": "test",
      "steps": [
        {
          "id": "probe", "name": "Probe", "actionId": "test.probe",
          "actionType": "check"
        },
        {
          "id": "optional", "name": "Optional", "actionId": "test.optional",
          "actionType": "check", "nonCritical": true
        },
        {
          "id": "final", "name": "Final", "actionId": "test.final",
          "actionType": "command"
        }
      ]
    },
    {
      "id": "chain-flow", "name": "Chain Flow", "version": "1",
      "category": "test",
      "steps": [
        {
          "id": "model", "name": "Model", "actionId": "test.probe",
          "actionType": "check", "outputs": ["deviceModel"]
        },
        {
          "id": "echo", "name": "Echo", "actionId": "test.echo",
          "actionType": "command", "inputs": ["deviceModel"]
        }
      ]
    },
    {
      "id": "wait-flow", "name": "Wait Flow", "version": "1",
      "category": "test",
      "steps": [
        {
          "id": "note", "name": "Starting", "actionId": "system.log",
          "actionType": "log"
        },
        {
          "id": "settle", "name": "Settle", "actionId": "system.wait",
          "actionType": "wait", "timeout": 30
        },
        {
          "id": "probe", "name": "Probe", "actionId": "test.probe",
          "actionType": "check"
        }
      ]
    },
    {
      "id": "timeout-flow", "name": "Timeout Flow", "version": "1",
      "category": "test",
      "steps": [
        {
          "id": "slow", "name": "Slow", "actionId": "test.probe",
          "actionType": "check", "timeout": 20
        }
      ]
    },
    {
      "id": "flash-flow", "name": "Flash Flow", "version": "1",
      "category": "test", "riskLevel": "destructive",
      "requiredGates": ["GATE_OWNERSHIP_ATTESTATION"],
      "steps": [
        {
          "id": "flash", "name": "Flash", "actionId": "test.flash",
          "actionType": "command", "inputs": ["partition", "image"]
        }
      ]
    }
  ]
}`
